package flashfat

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// failingFlash fails every write once armed.
type failingFlash struct {
	*ImageFlash
	failWrites bool
}

func (f *failingFlash) WriteSector(index uint32, src []byte) error {
	if f.failWrites {
		return sectorTestsError
	}
	return f.ImageFlash.WriteSector(index, src)
}

func TestVolume_Write_scenario(t *testing.T) {
	v, flash := testingVolume(t, DefaultGeometry())
	data := pattern(2500)

	d, err := v.Create("a.txt")
	if err != nil {
		t.Fatal(err)
	}
	n, err := v.Write(d, data)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n != len(data) {
		t.Errorf("Write() = %d, want %d", n, len(data))
	}
	if err := v.Close(d); err != nil {
		t.Fatal(err)
	}

	v = remount(t, v, flash)
	d, err = v.Open("a.txt")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	got, err := v.Read(d)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("Read() returned other bytes than written")
	}

	chain, err := v.Chain(d)
	if err != nil {
		t.Fatal(err)
	}
	if len(chain) != 3 {
		t.Fatalf("Chain() = %v, want 3 clusters", chain)
	}

	// 1022 + 1022 + 456 bytes.
	for i, want := range [][]byte{data[:1022], data[1022:2044], data[2044:]} {
		l, payload, err := v.clusters.read(chain[i])
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(payload[:len(want)], want) {
			t.Errorf("cluster %d holds the wrong bytes", i)
		}
		if wantEOF := i == 2; l.IsEOF() != wantEOF {
			t.Errorf("cluster %d link = %x, want EOF %v", i, uint16(l), wantEOF)
		}
	}

	stat, err := v.Stat()
	if err != nil {
		t.Fatal(err)
	}
	if stat.FreeClusters != DefaultMaxClusters-3 {
		t.Errorf("FreeClusters = %d, want %d", stat.FreeClusters, DefaultMaxClusters-3)
	}
	checkFreeCount(t, v)
}

func TestVolume_Write_roundTrip(t *testing.T) {
	capacity := int(smallGeometry.Capacity())
	for _, size := range []int{0, 1, ClusterDataSize - 1, ClusterDataSize, ClusterDataSize + 1, 2 * ClusterDataSize, 5000, capacity} {
		t.Run(fmt.Sprint(size), func(t *testing.T) {
			v, flash := testingVolume(t, smallGeometry)
			data := pattern(size)

			d, err := v.Create("file")
			if err != nil {
				t.Fatal(err)
			}
			if n, err := v.Write(d, data); err != nil || n != size {
				t.Fatalf("Write() = %d, %v, want %d, nil", n, err, size)
			}
			if d.Size != uint32(size) {
				t.Errorf("Size = %d, want %d", d.Size, size)
			}

			v = remount(t, v, flash)
			d, err = v.Open("file")
			if err != nil {
				t.Fatal(err)
			}
			got, err := v.Read(d)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if !bytes.Equal(got, data) {
				t.Errorf("Read() returned %d other bytes than written", len(got))
			}

			chain, err := v.Chain(d)
			if err != nil {
				t.Fatal(err)
			}
			if len(chain) != clustersFor(int64(size)) {
				t.Errorf("Chain() has %d clusters, want %d", len(chain), clustersFor(int64(size)))
			}
			if len(chain) > 0 {
				last, err := v.clusters.linkOf(chain[len(chain)-1])
				if err != nil {
					t.Fatal(err)
				}
				if !last.IsEOF() {
					t.Errorf("last cluster links to %x, want EOF", uint16(last))
				}
			}
			checkFreeCount(t, v)
		})
	}
}

func TestVolume_Write_conflict(t *testing.T) {
	v, _ := testingVolume(t, smallGeometry)

	d, err := v.Create("f")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v.Write(d, pattern(100)); err != nil {
		t.Fatal(err)
	}

	if _, err := v.Write(d, pattern(50)); !errors.Is(err, ErrClusterConflict) {
		t.Fatalf("Write() over written clusters error = %v, want %v", err, ErrClusterConflict)
	}

	// Truncate makes the file writable again.
	if err := v.Truncate(d); err != nil {
		t.Fatalf("Truncate() error = %v", err)
	}
	if d.Size != 0 {
		t.Errorf("Size after Truncate = %d, want 0", d.Size)
	}
	checkFreeCount(t, v)

	want := pattern(50)
	if _, err := v.Write(d, want); err != nil {
		t.Fatalf("Write() after Truncate error = %v", err)
	}
	got, err := v.Read(d)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Read() mismatch (-want +got):\n%s", diff)
	}
}

func TestVolume_Write_exhaustion(t *testing.T) {
	geo := Geometry{MaxClusters: 8, MaxFiles: 2}
	v, flash := testingVolume(t, geo)

	a, err := v.Create("a")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v.Write(a, pattern(3*ClusterDataSize)); err != nil {
		t.Fatal(err)
	}

	b, err := v.Create("b")
	if err != nil {
		t.Fatal(err)
	}
	if b.FirstCluster != 3 {
		t.Fatalf("FirstCluster = %d, want 3", b.FirstCluster)
	}

	// Only five clusters are left.
	n, err := v.Write(b, pattern(6*ClusterDataSize))
	if !errors.Is(err, ErrNoFreeSpace) {
		t.Fatalf("Write() error = %v, want %v", err, ErrNoFreeSpace)
	}
	if n != 4*ClusterDataSize {
		t.Errorf("Write() = %d, want the %d bytes of the linked clusters", n, 4*ClusterDataSize)
	}
	if b.Size != 4*ClusterDataSize {
		t.Errorf("Size = %d, want the %d committed bytes", b.Size, 4*ClusterDataSize)
	}

	// The chain has no end marker, which reading reports.
	if _, err := v.Read(b); !errors.Is(err, ErrCorruptChain) {
		t.Errorf("Read() of the aborted file error = %v, want %v", err, ErrCorruptChain)
	}
	chain, err := v.Chain(b)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uint16{3, 4, 5, 6}, chain); diff != "" {
		t.Errorf("Chain() mismatch (-want +got):\n%s", diff)
	}

	// The cluster written last is not linked, so it is still free.
	if free, _ := v.IsFree(7); !free {
		t.Error("the unlinked cluster is not free")
	}
	stat, err := v.Stat()
	if err != nil {
		t.Fatal(err)
	}
	if stat.FreeClusters != 1 {
		t.Errorf("FreeClusters = %d, want 1", stat.FreeClusters)
	}
	checkFreeCount(t, v)

	// The other file is untouched.
	v = remount(t, v, flash)
	a, err = v.Open("a")
	if err != nil {
		t.Fatal(err)
	}
	if got, err := v.Read(a); err != nil || !bytes.Equal(got, pattern(3*ClusterDataSize)) {
		t.Errorf("Read() of the other file = %d bytes, %v", len(got), err)
	}

	// Too big for the whole volume is rejected before anything is written.
	b, err = v.Open("b")
	if err != nil {
		t.Fatal(err)
	}
	if err := v.Truncate(b); err != nil {
		t.Fatal(err)
	}
	if n, err := v.Write(b, make([]byte, geo.Capacity()+1)); !errors.Is(err, ErrNoFreeSpace) || n != 0 {
		t.Errorf("Write() = %d, %v, want 0, %v", n, err, ErrNoFreeSpace)
	}
	checkFreeCount(t, v)

	// After Truncate what fits can be written again.
	want := pattern(5 * ClusterDataSize)
	if _, err := v.Write(b, want); err != nil {
		t.Fatalf("Write() after Truncate error = %v", err)
	}
	if got, err := v.Read(b); err != nil || !bytes.Equal(got, want) {
		t.Errorf("Read() = %d bytes, %v, want the written %d bytes", len(got), err, len(want))
	}
	checkFreeCount(t, v)
}

// The cluster left free by an aborted write may be handed to another file.
// Releasing the aborted file must not take it back.
func TestVolume_Delete_afterExhaustion(t *testing.T) {
	v, _ := testingVolume(t, Geometry{MaxClusters: 8, MaxFiles: 4})

	b, err := v.Create("b")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v.Write(b, pattern(3*ClusterDataSize)); err != nil {
		t.Fatal(err)
	}

	a, err := v.Create("a")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v.Write(a, pattern(5*ClusterDataSize+1)); !errors.Is(err, ErrNoFreeSpace) {
		t.Fatalf("Write() error = %v, want %v", err, ErrNoFreeSpace)
	}

	if err := v.Delete(b); err != nil {
		t.Fatal(err)
	}
	c, err := v.Create("c")
	if err != nil {
		t.Fatal(err)
	}
	want := pattern(4 * ClusterDataSize)
	if _, err := v.Write(c, want); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	chain, err := v.Chain(c)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uint16{0, 1, 2, 7}, chain); diff != "" {
		t.Fatalf("Chain() mismatch (-want +got):\n%s", diff)
	}

	tests := []struct {
		name    string
		release func(d *Descriptor) error
	}{
		{name: "truncate", release: v.Truncate},
		{name: "delete", release: v.Delete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.release(a); err != nil {
				t.Fatalf("release error = %v", err)
			}
			if free, _ := v.IsFree(7); free {
				t.Error("cluster 7 of the other file was freed")
			}
			got, err := v.Read(c)
			if err != nil {
				t.Fatalf("Read() of the other file error = %v", err)
			}
			if !bytes.Equal(got, want) {
				t.Error("Read() of the other file returned other bytes than written")
			}
			checkFreeCount(t, v)
		})
	}
}

func TestVolume_Read_corrupt(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(v *Volume, chain []uint16) error
	}{
		{
			name: "chain ends early",
			corrupt: func(v *Volume, chain []uint16) error {
				return v.clusters.setLink(chain[0], linkEOF)
			},
		},
		{
			name: "free cluster in the chain",
			corrupt: func(v *Volume, chain []uint16) error {
				return v.clusters.setLink(chain[1], linkFree)
			},
		},
		{
			name: "link leaves the data region",
			corrupt: func(v *Volume, chain []uint16) error {
				return v.clusters.setLink(chain[0], 100)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _ := testingVolume(t, smallGeometry)
			d, err := v.Create("f")
			if err != nil {
				t.Fatal(err)
			}
			if _, err := v.Write(d, pattern(2500)); err != nil {
				t.Fatal(err)
			}
			chain, err := v.Chain(d)
			if err != nil {
				t.Fatal(err)
			}

			if err := tt.corrupt(v, chain); err != nil {
				t.Fatal(err)
			}

			if _, err := v.Read(d); !errors.Is(err, ErrCorruptChain) {
				t.Errorf("Read() error = %v, want %v", err, ErrCorruptChain)
			}
		})
	}
}

func TestVolume_Write_flashError(t *testing.T) {
	flash := &failingFlash{ImageFlash: NewMemFlash(smallGeometry.TotalSectors())}
	v, err := NewVolume(flash, testingConfig(smallGeometry))
	if err != nil {
		t.Fatal(err)
	}
	if err := v.Format(); err != nil {
		t.Fatal(err)
	}

	d, err := v.Create("f")
	if err != nil {
		t.Fatal(err)
	}

	flash.failWrites = true
	if _, err := v.Write(d, pattern(5000)); !errors.Is(err, sectorTestsError) {
		t.Errorf("Write() error = %v, want %v", err, sectorTestsError)
	}
	if err := v.Sync(); !errors.Is(err, sectorTestsError) {
		t.Errorf("Sync() error = %v, want %v", err, sectorTestsError)
	}
}

func TestVolume_Chain(t *testing.T) {
	v, _ := testingVolume(t, smallGeometry)

	d, err := v.Create("f")
	if err != nil {
		t.Fatal(err)
	}

	chain, err := v.Chain(d)
	if err != nil {
		t.Fatal(err)
	}
	if len(chain) != 0 {
		t.Errorf("Chain() of an unwritten file = %v, want empty", chain)
	}

	if _, err := v.Write(d, pattern(2*ClusterDataSize+1)); err != nil {
		t.Fatal(err)
	}
	chain, err = v.Chain(d)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uint16{0, 1, 2}, chain); diff != "" {
		t.Errorf("Chain() mismatch (-want +got):\n%s", diff)
	}
}
