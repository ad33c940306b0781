// Package xupload implements the storage side of XMPP HTTP File Upload
// (XEP-0363) as a blind object store.
//
// The XMPP server hands clients a PUT URL carrying an HMAC authorization code
// over "<path> <length>". The store verifies that code, writes the body next
// to a small JSON metadata artifact and serves both back on GET or HEAD. It
// keeps no index: an object is the pair of files "<path>.data" and
// "<path>.meta" below the storage root, and a missing meta file means the
// object does not exist.
//
// # Key Components
//
//   - UploadService: put/get/head over a FileStorage, with optional quota
//   - Resolver: maps request paths into the root, rejecting traversal
//   - SignatureVerifier: constant time check of the v query parameter
//   - HeaderPolicy: Content-Disposition and anti-sniffing headers for downloads
//   - QuotaEnforcer: evicts whole collections, oldest first, before a write
//
// # Example Usage
//
//	verifier, err := xupload.NewSignatureVerifier(secret)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	service, err := xupload.NewUploadService(xupload.ServiceConfig{
//	    Resolver: resolver,
//	    Verifier: verifier,
//	    Quota:    filesystem.NewQuota(root),
//	    Store:    filesystem.NewFileStorage(root),
//	})
//
//	// issuer side
//	code := xupload.Sign(secret, "abc/f.txt", 5)
//
//	// store side
//	err = service.Put(ctx, xupload.PutRequest{
//	    Path: "abc/f.txt", Length: 5, Signature: code,
//	}, body)
//
// See the http package for the HTTP handler and the filesystem package for
// the os.Root backed storage and quota implementations.
package xupload
