// Package mem provides aligned memory allocation for value buffers.
package mem
