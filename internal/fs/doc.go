// Package fs provides filesystem abstractions for testability and fault injection.
//
//   - [OS]: the host file system
//   - [FaultyFS]: wraps another FileSystem and injects write, read, sync
//     or close failures per file name pattern
//
// Production code uses fs.Default:
//
//	file, err := fs.Default.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
//
// Tests inject a FaultyFS:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("rows.dat", fs.Fault{FailAfterBytes: 0})
//
// Operations take no context.Context: local syscalls are not interruptible.
package fs
