// Package clientcli provides a client for xupload servers and the output
// formatting used by the xupload command line.
//
// The client holds the shared secret, so besides uploading and downloading it
// can issue signed upload URLs the same way an XMPP server does.
//
// # Basic Usage
//
//	client, err := clientcli.New("https://upload.example.org", secret)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := client.Upload(ctx, clientcli.UploadOptions{
//		LocalPath: "./cat.jpg",
//	})
//	fmt.Println(result.URL)
//
// # Output Formatting
//
// Use formatters for human-readable or JSON output:
//
//	formatter := clientcli.NewFormatter(jsonOutput, quiet)
//	formatter.FormatUpload(os.Stdout, result)
package clientcli
