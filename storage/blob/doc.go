// Package blob implements storage.Backend on a blobstore.Store, storing
// each row as its own object under emb-<embedding key>/.
//
// Requests of one batch run concurrently, bounded by WithConcurrency and,
// across backends, by a shared resource.Controller.
package blob
