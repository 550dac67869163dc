package dmabuf

import (
	"fmt"

	"texshare/internal/handle"
)

// Descriptor is an exported single-plane buffer.
type Descriptor struct {
	Handle   *handle.Handle
	Format   FourCC
	Modifier Modifier
	Stride   uint32
	Offset   uint32
}

// Close releases the handle if it was not consumed by a send or an import.
func (d *Descriptor) Close() error {
	if d == nil {
		return nil
	}
	return d.Handle.Close()
}

func (d *Descriptor) String() string {
	if d == nil {
		return "<nil descriptor>"
	}
	return fmt.Sprintf("%s format=%s modifier=%s stride=%d offset=%d",
		d.Handle, d.Format, d.Modifier, d.Stride, d.Offset)
}
