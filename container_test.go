package zvfs

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	digest "github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/zvfs/internal/layout"
	"github.com/meigma/zvfs/internal/testutil"
)

var testEpoch = time.Unix(1_700_000_000, 0)

func fixedClock() time.Time { return testEpoch }

// newTestContainer formats an in-memory container.
func newTestContainer(t *testing.T, opts ...Option) (*Container, *testutil.MemDevice) {
	t.Helper()
	dev := testutil.NewMemDevice(nil)
	c := New(dev, append([]Option{WithClock(fixedClock)}, opts...)...)
	require.NoError(t, c.Format())
	return c, dev
}

// mustAdd adds data under name and fails the test on error.
func mustAdd(t *testing.T, c *Container, name string, data []byte) EntryInfo {
	t.Helper()
	info, err := c.Add(name, data)
	require.NoError(t, err, "Add(%q)", name)
	return info
}

// listNames collects the names yielded by List.
func listNames(t *testing.T, c *Container) []string {
	t.Helper()
	var names []string
	for info, err := range c.List() {
		require.NoError(t, err)
		names = append(names, info.Name)
	}
	return names
}

// requireConsistent asserts Describe succeeds and the slot invariant holds.
func requireConsistent(t *testing.T, c *Container) Summary {
	t.Helper()
	sum, err := c.Describe()
	require.NoError(t, err)
	require.Equal(t, sum.Capacity, sum.Live+sum.Deleted+sum.Empty)
	return sum
}

func superblockOf(t *testing.T, dev *testutil.MemDevice) layout.Superblock {
	t.Helper()
	sb, err := layout.DecodeSuperblock(dev.Bytes()[:layout.SuperblockSize])
	require.NoError(t, err)
	return sb
}

func TestFormat_EmptyContainer(t *testing.T) {
	t.Parallel()

	c, dev := newTestContainer(t)

	size, err := dev.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(64+32*64), size)
	assert.Equal(t, "ZVFSDSK1", string(dev.Bytes()[:8]))

	sum := requireConsistent(t, c)
	assert.Equal(t, Summary{
		Empty:     32,
		Capacity:  32,
		DataStart: 2112,
		NextFree:  2112,
		FreeHint:  0,
		FileSize:  2112,
	}, sum)
}

func TestFormat_Capacity(t *testing.T) {
	t.Parallel()

	c, _ := newTestContainer(t, WithCapacity(4))
	sum := requireConsistent(t, c)
	assert.Equal(t, 4, sum.Capacity)
	assert.Equal(t, uint32(64+4*64), sum.DataStart)

	for _, n := range []int{0, -1, 1 << 16} {
		err := New(testutil.NewMemDevice(nil), WithCapacity(n)).Format()
		assert.Error(t, err, "capacity %d", n)
	}
}

func TestAddExtract_RoundTrip(t *testing.T) {
	t.Parallel()

	payloads := map[string][]byte{
		"empty":    {},
		"one":      {0x42},
		"aligned":  testutil.Payload(1, 64),
		"spill":    testutil.Payload(2, 65),
		"binary":   {0x00, 0xFF, 0x00, 0x10},
		"large":    testutil.Payload(3, 10_000),
		"unicode€": []byte("héllo wörld"),
	}

	c, _ := newTestContainer(t)
	for name, data := range payloads {
		mustAdd(t, c, name, data)
	}
	for name, want := range payloads {
		got, err := c.Extract(name)
		require.NoError(t, err, "Extract(%q)", name)
		assert.Equal(t, want, got, "Extract(%q)", name)
	}
	requireConsistent(t, c)
}

func TestAdd_WritesEntryAndPadding(t *testing.T) {
	t.Parallel()

	c, dev := newTestContainer(t)
	info := mustAdd(t, c, "h.txt", []byte("hello"))

	assert.Equal(t, EntryInfo{
		Name:      "h.txt",
		Size:      5,
		CreatedAt: testEpoch,
		Slot:      0,
		Offset:    2112,
	}, info)

	raw := dev.Bytes()
	require.Len(t, raw, 2176, "payload is padded to the next boundary")
	assert.Equal(t, []byte("hello"), raw[2112:2117])
	assert.Equal(t, make([]byte, 2176-2117), raw[2117:])

	sb := superblockOf(t, dev)
	assert.Equal(t, uint16(1), sb.FileCount)
	assert.Equal(t, uint32(2176), sb.NextFreeOffset)
	assert.Equal(t, 1, sb.HintSlot())
}

func TestAdd_Alignment(t *testing.T) {
	t.Parallel()

	c, _ := newTestContainer(t)
	for i := range 20 {
		mustAdd(t, c, fmt.Sprintf("f%02d", i), testutil.Payload(byte(i), i*37+1))
	}
	for info, err := range c.List() {
		require.NoError(t, err)
		assert.Zero(t, info.Offset%Alignment, "%s at %d", info.Name, info.Offset)
	}
}

func TestAdd_DuplicateName(t *testing.T) {
	t.Parallel()

	c, dev := newTestContainer(t)
	mustAdd(t, c, "a.txt", []byte("first"))

	writes := dev.Writes()
	_, err := c.Add("a.txt", []byte("second"))
	require.ErrorIs(t, err, ErrDuplicateName)
	assert.Equal(t, writes, dev.Writes(), "rejected add must not write")

	require.NoError(t, c.Remove("a.txt"))
	mustAdd(t, c, "a.txt", []byte("third"))

	got, err := c.Extract("a.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("third"), got)
}

func TestAdd_InvalidName(t *testing.T) {
	t.Parallel()

	c, dev := newTestContainer(t)
	writes := dev.Writes()

	_, err := c.Add("", []byte("x"))
	require.ErrorIs(t, err, ErrInvalidName)
	_, err = c.Add("a\x00b", []byte("x"))
	require.ErrorIs(t, err, ErrInvalidName)
	assert.Equal(t, writes, dev.Writes())
}

func TestAdd_LongNameIsTruncated(t *testing.T) {
	t.Parallel()

	c, _ := newTestContainer(t)
	long := strings.Repeat("n", 40)
	info := mustAdd(t, c, long, []byte("data"))
	assert.Equal(t, strings.Repeat("n", MaxNameLen), info.Name)

	got, err := c.Extract(long)
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), got)

	_, err = c.Add(strings.Repeat("n", 35), []byte("other"))
	require.ErrorIs(t, err, ErrDuplicateName, "names colliding after truncation are duplicates")
}

func TestAdd_CapacityExceeded(t *testing.T) {
	t.Parallel()

	c, dev := newTestContainer(t)
	for i := range DefaultCapacity {
		mustAdd(t, c, fmt.Sprintf("file-%02d", i), []byte{byte(i)})
	}
	assert.True(t, superblockOf(t, dev).NoFreeHint, "full table clears the hint")

	writes := dev.Writes()
	_, err := c.Add("one-too-many", []byte("x"))
	require.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, writes, dev.Writes())

	require.NoError(t, c.Remove("file-07"))
	stats, err := c.Compact()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Removed)

	mustAdd(t, c, "one-too-many", []byte("x"))
	sum := requireConsistent(t, c)
	assert.Equal(t, DefaultCapacity, sum.Live)
}

func TestAdd_SizeLimit(t *testing.T) {
	t.Parallel()

	c, dev := newTestContainer(t)
	sb := superblockOf(t, dev)
	sb.NextFreeOffset = uint32(SizeLimit - 128)
	dev.Poke(0, sb.Encode())

	writes := dev.Writes()
	_, err := c.Add("big", testutil.Payload(1, 200))
	require.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, writes, dev.Writes(), "rejected add must not write")
	assert.Equal(t, uint16(0), superblockOf(t, dev).FileCount)
}

func TestAdd_ReusesTombstonedSlot(t *testing.T) {
	t.Parallel()

	c, dev := newTestContainer(t)
	mustAdd(t, c, "a", []byte("a"))
	mustAdd(t, c, "h.txt", []byte("hello"))
	mustAdd(t, c, "c", []byte("c"))
	before := superblockOf(t, dev)

	require.NoError(t, c.Remove("h.txt"))
	removed := superblockOf(t, dev)
	assert.Equal(t, before.FileCount-1, removed.FileCount)
	assert.Equal(t, uint16(1), removed.DeletedFiles)
	assert.Equal(t, 1, removed.HintSlot())

	info := mustAdd(t, c, "h.txt", []byte("hello again"))
	assert.Equal(t, 1, info.Slot)
	readded := superblockOf(t, dev)
	assert.Equal(t, before.FileCount, readded.FileCount)
	assert.Zero(t, readded.DeletedFiles)
	assert.Greater(t, readded.NextFreeOffset, before.NextFreeOffset, "space is not reclaimed without compaction")
	requireConsistent(t, c)
}

func TestExtract_NotFound(t *testing.T) {
	t.Parallel()

	c, _ := newTestContainer(t)
	_, err := c.Extract("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestExtract_SkipsTombstoneToLaterLive(t *testing.T) {
	t.Parallel()

	c, dev := newTestContainer(t)
	mustAdd(t, c, "x", []byte("old"))
	mustAdd(t, c, "y", []byte("other"))
	mustAdd(t, c, "z", []byte("new"))
	require.NoError(t, c.Remove("x"))

	// Rename slot 2 to "x" so a tombstoned "x" precedes a live "x".
	sb := superblockOf(t, dev)
	renamed := layout.NewEntry("x", 2112+2*64, 3, testEpoch)
	dev.Poke(sb.SlotOffset(2), renamed.Encode())

	got, err := c.Extract("x")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got)
	assert.Equal(t, []string{"y", "x"}, listNames(t, c))
}

func TestRemove(t *testing.T) {
	t.Parallel()

	c, dev := newTestContainer(t)
	mustAdd(t, c, "h.txt", []byte("hello"))
	raw := dev.Bytes()

	require.NoError(t, c.Remove("h.txt"))
	after := dev.Bytes()
	assert.Equal(t, raw[2112:], after[2112:], "payload bytes are left in place")

	_, err := c.Extract("h.txt")
	require.ErrorIs(t, err, ErrNotFound)

	err = c.Remove("h.txt")
	require.ErrorIs(t, err, ErrAlreadyDeleted)

	err = c.Remove("never-added")
	require.ErrorIs(t, err, ErrNotFound)
	requireConsistent(t, c)
}

func TestReadText(t *testing.T) {
	t.Parallel()

	c, _ := newTestContainer(t)
	mustAdd(t, c, "note.txt", []byte("héllo"))
	mustAdd(t, c, "bin", []byte{0xff, 0xfe, 0xfd})

	text, err := c.ReadText("note.txt")
	require.NoError(t, err)
	assert.Equal(t, "héllo", text)

	_, err = c.ReadText("bin")
	require.ErrorIs(t, err, ErrEncoding)

	_, err = c.ReadText("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestInspect(t *testing.T) {
	t.Parallel()

	c, _ := newTestContainer(t)
	mustAdd(t, c, "a", []byte("skip"))
	mustAdd(t, c, "b", []byte("payload"))

	info, err := c.Inspect("b")
	require.NoError(t, err)
	assert.Equal(t, 1, info.Slot)
	assert.Equal(t, uint32(7), info.Size)
	assert.Equal(t, digest.FromBytes([]byte("payload")), info.Digest)

	_, err = c.Inspect("zzz")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestList(t *testing.T) {
	t.Parallel()

	c, _ := newTestContainer(t)
	assert.Empty(t, listNames(t, c))

	mustAdd(t, c, "a", []byte("1"))
	mustAdd(t, c, "b", []byte("22"))
	mustAdd(t, c, "c", []byte("333"))
	require.NoError(t, c.Remove("b"))

	var infos []EntryInfo
	for info, err := range c.List() {
		require.NoError(t, err)
		infos = append(infos, info)
	}
	require.Len(t, infos, 2)
	assert.Equal(t, "a", infos[0].Name)
	assert.Equal(t, uint32(1), infos[0].Size)
	assert.Equal(t, testEpoch, infos[0].CreatedAt)
	assert.Equal(t, "c", infos[1].Name)
	assert.Equal(t, uint32(3), infos[1].Size)
}

func TestList_Restartable(t *testing.T) {
	t.Parallel()

	c, _ := newTestContainer(t)
	mustAdd(t, c, "a", []byte("1"))

	seq := c.List()
	first := 0
	for _, err := range seq {
		require.NoError(t, err)
		first++
	}

	mustAdd(t, c, "b", []byte("2"))
	second := 0
	for _, err := range seq {
		require.NoError(t, err)
		second++
	}
	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second, "ranging again observes the new entry")

	for range seq {
		break
	}
}

func TestDescribe_Idempotent(t *testing.T) {
	t.Parallel()

	c, dev := newTestContainer(t)
	mustAdd(t, c, "a", []byte("1"))
	mustAdd(t, c, "b", []byte("2"))
	require.NoError(t, c.Remove("a"))
	writes := dev.Writes()

	first, err := c.Describe()
	require.NoError(t, err)
	second, err := c.Describe()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, writes, dev.Writes(), "describe is read-only")
	assert.Equal(t, Summary{
		Live:      1,
		Deleted:   1,
		Empty:     30,
		Capacity:  32,
		DataStart: 2112,
		NextFree:  2240,
		FreeHint:  0,
		FileSize:  2240,
	}, first)
}

func TestDescribe_ConsistencyErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(sb *layout.Superblock)
		field  string
	}{
		{"file count", func(sb *layout.Superblock) { sb.FileCount++ }, "file_count"},
		{"deleted files", func(sb *layout.Superblock) { sb.DeletedFiles = 2 }, "deleted_files"},
		{"hint at live slot", func(sb *layout.Superblock) { sb.SetHint(0) }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, dev := newTestContainer(t)
			mustAdd(t, c, "a", []byte("1"))
			mustAdd(t, c, "b", []byte("2"))
			require.NoError(t, c.Remove("b"))

			sb := superblockOf(t, dev)
			tt.mutate(&sb)
			dev.Poke(0, sb.Encode())

			sum, err := c.Describe()
			require.ErrorIs(t, err, ErrConsistency)
			assert.Equal(t, 1, sum.Live, "summary holds recomputed counts")
			if tt.field != "" {
				var cerr *ConsistencyError
				require.ErrorAs(t, err, &cerr)
				assert.Equal(t, tt.field, cerr.Field)
			}
		})
	}
}

func TestOperations_RejectCorruptSuperblock(t *testing.T) {
	t.Parallel()

	c, dev := newTestContainer(t)
	mustAdd(t, c, "a", []byte("1"))
	dev.Poke(0, []byte("NOTZVFS!"))

	_, err := c.Describe()
	require.ErrorIs(t, err, ErrFormat)
	_, err = c.Add("b", []byte("2"))
	require.ErrorIs(t, err, ErrFormat)
	_, err = c.Extract("a")
	require.ErrorIs(t, err, ErrFormat)
	require.ErrorIs(t, c.Remove("a"), ErrFormat)
	_, err = c.Compact()
	require.ErrorIs(t, err, ErrFormat)
	for _, err := range c.List() {
		require.ErrorIs(t, err, ErrFormat)
	}
}

func TestOperations_RejectEntryOutsideDataRegion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		offset uint32
		length uint32
	}{
		{"offset inside table", 64, 2},
		{"length past cursor", 2112, 1 << 30},
		{"offset past cursor", 4096, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, dev := newTestContainer(t)
			mustAdd(t, c, "a", []byte("hello"))

			sb := superblockOf(t, dev)
			bad := layout.NewEntry("a", tt.offset, tt.length, testEpoch)
			dev.Poke(sb.SlotOffset(0), bad.Encode())

			_, err := c.Extract("a")
			require.ErrorIs(t, err, ErrFormat)
			_, err = c.Inspect("a")
			require.ErrorIs(t, err, ErrFormat)
			_, err = c.Compact()
			require.ErrorIs(t, err, ErrFormat)

			_, err = c.Describe()
			require.ErrorIs(t, err, ErrConsistency)
		})
	}
}

func TestOperations_RejectTruncatedDevice(t *testing.T) {
	t.Parallel()

	dev := testutil.NewMemDevice([]byte("ZVFS"))
	_, err := New(dev).Describe()
	require.ErrorIs(t, err, ErrFormat)
}

func TestCompact(t *testing.T) {
	t.Parallel()

	c, dev := newTestContainer(t)
	mustAdd(t, c, "a", testutil.Payload(1, 100))
	mustAdd(t, c, "b", testutil.Payload(2, 100))
	mustAdd(t, c, "c", testutil.Payload(3, 10))
	require.NoError(t, c.Remove("a"))
	sizeBefore, err := dev.Size()
	require.NoError(t, err)

	stats, err := c.Compact()
	require.NoError(t, err)
	assert.Equal(t, CompactStats{Removed: 1, BytesFreed: 128, Retained: 2}, stats)

	sizeAfter, err := dev.Size()
	require.NoError(t, err)
	assert.Less(t, sizeAfter, sizeBefore)
	assert.Equal(t, int64(2112+128+64), sizeAfter)

	assert.Equal(t, []string{"b", "c"}, listNames(t, c))
	got, err := c.Extract("b")
	require.NoError(t, err)
	assert.Equal(t, testutil.Payload(2, 100), got)

	info, err := c.Inspect("b")
	require.NoError(t, err)
	assert.Equal(t, 0, info.Slot)
	assert.Equal(t, uint32(2112), info.Offset)
	assert.Equal(t, testEpoch, info.CreatedAt, "creation time survives compaction")

	sum := requireConsistent(t, c)
	assert.Equal(t, 0, sum.Deleted)
	assert.Equal(t, 2, sum.FreeHint)
}

func TestCompact_OutOfOrderSlots(t *testing.T) {
	t.Parallel()

	// Slot order differs from data order once a tombstoned slot is reused:
	// slot 0 ends up holding the newest, highest-offset payload.
	c, _ := newTestContainer(t)
	mustAdd(t, c, "a", testutil.Payload(1, 300))
	mustAdd(t, c, "b", testutil.Payload(2, 200))
	require.NoError(t, c.Remove("a"))
	mustAdd(t, c, "d", testutil.Payload(4, 500))

	_, err := c.Compact()
	require.NoError(t, err)

	assert.Equal(t, []string{"d", "b"}, listNames(t, c))
	for name, want := range map[string][]byte{
		"d": testutil.Payload(4, 500),
		"b": testutil.Payload(2, 200),
	} {
		got, err := c.Extract(name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
	requireConsistent(t, c)
}

// failingDevice fails the nth WriteAt call.
type failingDevice struct {
	*testutil.MemDevice
	failAt int
	calls  int
}

func (d *failingDevice) WriteAt(p []byte, off int64) (int, error) {
	d.calls++
	if d.calls == d.failAt {
		return 0, errors.New("injected write failure")
	}
	return d.MemDevice.WriteAt(p, off)
}

func TestCompact_WriteFailureKeepsTable(t *testing.T) {
	t.Parallel()

	c, mem := newTestContainer(t)
	mustAdd(t, c, "a", testutil.Payload(1, 100))
	mustAdd(t, c, "b", testutil.Payload(2, 100))
	require.NoError(t, c.Remove("a"))

	// The first write moves b's payload; the second, its tail padding, fails.
	dev := &failingDevice{MemDevice: mem, failAt: 2}
	_, err := New(dev, WithClock(fixedClock)).Compact()
	require.Error(t, err)

	sum, err := c.Describe()
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Live)
	assert.Equal(t, 1, sum.Deleted)

	got, err := c.Extract("b")
	require.NoError(t, err)
	assert.Equal(t, testutil.Payload(2, 100), got)
}

func TestCompact_Empty(t *testing.T) {
	t.Parallel()

	c, dev := newTestContainer(t)
	stats, err := c.Compact()
	require.NoError(t, err)
	assert.Equal(t, CompactStats{}, stats)

	size, err := dev.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(2112), size)
	requireConsistent(t, c)
}

func TestCompact_FullTableClearsHint(t *testing.T) {
	t.Parallel()

	c, dev := newTestContainer(t, WithCapacity(3))
	mustAdd(t, c, "a", []byte("1"))
	mustAdd(t, c, "b", []byte("2"))
	mustAdd(t, c, "c", []byte("3"))

	_, err := c.Compact()
	require.NoError(t, err)
	assert.True(t, superblockOf(t, dev).NoFreeHint)
	requireConsistent(t, c)
}

// TestInvariants_RandomOperations drives a container with a seeded mix of
// operations and checks it against an in-memory model after every step.
func TestInvariants_RandomOperations(t *testing.T) {
	t.Parallel()

	c, dev := newTestContainer(t, WithCapacity(8))
	rng := rand.New(rand.NewPCG(1, 2))
	model := map[string][]byte{}

	for step := range 400 {
		name := fmt.Sprintf("n%d", rng.IntN(12))
		sizeBefore, err := dev.Size()
		require.NoError(t, err)

		switch op := rng.IntN(10); {
		case op < 5:
			data := testutil.Payload(byte(step), rng.IntN(300))
			_, err := c.Add(name, data)
			_, live := model[name]
			switch {
			case len(model) == 8:
				require.ErrorIs(t, err, ErrCapacityExceeded)
			case live:
				require.ErrorIs(t, err, ErrDuplicateName)
			default:
				require.NoError(t, err)
				model[name] = data
			}
		case op < 8:
			err := c.Remove(name)
			if _, live := model[name]; live {
				require.NoError(t, err)
				delete(model, name)
			} else {
				require.Error(t, err)
			}
		default:
			_, err := c.Compact()
			require.NoError(t, err)
			sizeAfter, err := dev.Size()
			require.NoError(t, err)
			require.LessOrEqual(t, sizeAfter, sizeBefore, "compaction never grows the file")
		}

		sum := requireConsistent(t, c)
		require.Equal(t, len(model), sum.Live, "step %d", step)
	}

	for name, want := range model {
		got, err := c.Extract(name)
		require.NoError(t, err)
		require.True(t, bytes.Equal(want, got), name)
	}
}
