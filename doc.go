// Package twotier is an embeddable two-tier object cache: a weight-bounded
// in-memory LRU tier in front of a byte-bounded persistent disk tier.
// Either tier can be used alone.
//
// # Tiers
//
// The memory tier (package cache) holds live values, weighed by the user's
// Helper and optionally expiring after a timeout. The disk tier (package
// disk) holds serialized streams in a capacity-bounded store, the file-based
// default living in package filestore. Get reads memory first, then disk,
// promoting disk hits into memory; concurrent misses on one key share a
// single disk read.
//
// # Basic usage
//
//	type codec struct{ twotier.Base[string] }
//
//	func (codec) Read(p *disk.ReadPipe) (string, error) {
//	    r, err := p.Open()
//	    if err != nil {
//	        return "", err
//	    }
//	    b, err := io.ReadAll(r)
//	    return string(b), err
//	}
//
//	func (codec) Write(w io.Writer, v string) error {
//	    _, err := io.WriteString(w, v)
//	    return err
//	}
//
//	c := twotier.New[string](twotier.Options[string]{
//	    MemoryCapacity: 1024,
//	    DiskDir:        "/var/cache/app",
//	    DiskCapacity:   64 << 20,
//	    Helper:         codec{},
//	})
//	c.Put("greeting", "hello")
//	v, ok := c.Get("greeting")
//
// # Failure model
//
// Configuration mistakes (no tiers, bad capacities, nil Helper) panic at
// construction. Disk I/O failures degrade softly: reads miss, writes drop,
// and ClearDisk retries the store open.
package twotier
