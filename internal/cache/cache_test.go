package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ZSC714725/shrinkr/internal/logger"
	"github.com/ZSC714725/shrinkr/internal/probe"
	"github.com/ZSC714725/shrinkr/internal/probe/probetest"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func openCache(t *testing.T, path string, p probe.Prober, opts ...Option) *Cache {
	t.Helper()
	c, err := Open(path, p, logger.Nop(), opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return c
}

func TestMetadata_ProbesOnceAndPersists(t *testing.T) {
	dir := t.TempDir()
	clip := touch(t, dir, "clip.mkv")
	cacheFile := filepath.Join(dir, "cache", "probe.json")

	fake := probetest.New()
	fake.SetStream("clip.mkv", "hevc", 3840, 2160, 64.29)

	c := openCache(t, cacheFile, fake)
	ctx := context.Background()

	md := c.Metadata(ctx, clip)
	if !md.IsKnown() || md.Codec != "hevc" || md.Height != 2160 || md.Duration != 64.29 {
		t.Fatalf("got %+v", md)
	}
	if again := c.Metadata(ctx, clip); again != md {
		t.Errorf("second lookup differs: %+v", again)
	}
	if n := fake.Calls(clip); n != 1 {
		t.Errorf("probe calls: got %d, want 1", n)
	}

	// write-through: the file already holds the entry
	data, err := os.ReadFile(cacheFile)
	if err != nil {
		t.Fatalf("cache file not written: %v", err)
	}
	var records map[string]record
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("cache file: %v", err)
	}
	r, ok := records[clip]
	if !ok {
		t.Fatalf("no record for %s in %v", clip, records)
	}
	info, _ := os.Stat(clip)
	if !r.Datetime.Equal(info.ModTime()) {
		t.Errorf("stored mtime %v, want %v", r.Datetime, info.ModTime())
	}
}

func TestMetadata_ReloadedCacheSkipsProbe(t *testing.T) {
	dir := t.TempDir()
	clip := touch(t, dir, "clip.mkv")
	cacheFile := filepath.Join(dir, "probe.json")

	fake := probetest.New()
	fake.SetStream("clip.mkv", "hevc", 3840, 2160, 64.29)
	openCache(t, cacheFile, fake).Metadata(context.Background(), clip)

	empty := probetest.New()
	c := openCache(t, cacheFile, empty)
	if c.Len() != 1 {
		t.Fatalf("Len: got %d, want 1", c.Len())
	}
	md := c.Metadata(context.Background(), clip)
	if !md.IsKnown() || md.Duration != 64.29 {
		t.Errorf("got %+v", md)
	}
	if empty.TotalCalls() != 0 {
		t.Errorf("reloaded cache probed %d times", empty.TotalCalls())
	}
}

func TestMetadata_MtimeChangeInvalidates(t *testing.T) {
	dir := t.TempDir()
	clip := touch(t, dir, "clip.mkv")

	fake := probetest.New()
	fake.SetStream("clip.mkv", "hevc", 3840, 2160, 64.29)
	c := openCache(t, filepath.Join(dir, "probe.json"), fake)
	ctx := context.Background()

	c.Metadata(ctx, clip)

	// same content, different mtime
	later := time.Now().Add(time.Hour).Truncate(time.Second)
	if err := os.Chtimes(clip, later, later); err != nil {
		t.Fatal(err)
	}
	fake.SetStream("clip.mkv", "hevc", 1920, 1080, 10)

	md := c.Metadata(ctx, clip)
	if md.Height != 1080 || md.Duration != 10 {
		t.Errorf("stale entry served: %+v", md)
	}
	if n := fake.Calls(clip); n != 2 {
		t.Errorf("probe calls: got %d, want 2", n)
	}
	e := c.Entries()[0]
	if !e.Mtime.Equal(later) {
		t.Errorf("entry mtime %v, want %v", e.Mtime, later)
	}
}

func TestMetadata_ProbeFailureNotCached(t *testing.T) {
	dir := t.TempDir()
	broken := touch(t, dir, "broken.mp4")
	cacheFile := filepath.Join(dir, "probe.json")

	fake := probetest.New()
	c := openCache(t, cacheFile, fake)
	ctx := context.Background()

	md := c.Metadata(ctx, broken)
	if md.IsKnown() || md.Codec != probe.UnknownCodec || md.Duration != 0 {
		t.Errorf("got %+v, want unknown", md)
	}
	if c.Len() != 0 {
		t.Errorf("failure was cached: %d entries", c.Len())
	}
	if _, err := os.Stat(cacheFile); !os.IsNotExist(err) {
		t.Errorf("cache file written on failure: %v", err)
	}

	c.Metadata(ctx, broken)
	if n := fake.Calls(broken); n != 2 {
		t.Errorf("failed probe should be retried: got %d calls", n)
	}
}

func TestMetadata_MalformedOutputNotCached(t *testing.T) {
	dir := t.TempDir()
	clip := touch(t, dir, "clip.webm")

	fake := probetest.New()
	fake.Set("clip.webm", []byte(`{"streams":[{"codec_name":"vp9","width":1,"height":1,"tags":{"DURATION":"00:00"}}]}`))
	c := openCache(t, "", fake)

	if md := c.Metadata(context.Background(), clip); md.IsKnown() {
		t.Errorf("got %+v, want unknown", md)
	}
	if c.Len() != 0 {
		t.Errorf("malformed output was cached")
	}
}

func TestMetadata_DeletedFile(t *testing.T) {
	dir := t.TempDir()
	clip := touch(t, dir, "clip.mkv")

	fake := probetest.New()
	fake.SetStream("clip.mkv", "hevc", 3840, 2160, 64.29)
	c := openCache(t, "", fake)
	ctx := context.Background()

	c.Metadata(ctx, clip)
	if err := os.Remove(clip); err != nil {
		t.Fatal(err)
	}

	if md := c.Metadata(ctx, clip); md.IsKnown() {
		t.Errorf("deleted file served from cache: %+v", md)
	}
	if c.Len() != 0 {
		t.Errorf("entry for deleted file kept")
	}
}

func TestMetadata_ConcurrentProbesPersistCompleteSnapshot(t *testing.T) {
	dir := t.TempDir()
	cacheFile := filepath.Join(dir, "probe.json")
	fake := probetest.New()

	var paths []string
	for i := 0; i < 24; i++ {
		name := fmt.Sprintf("clip%02d.mkv", i)
		paths = append(paths, touch(t, dir, name))
		fake.SetStream(name, "hevc", 3840, 2160, float64(i+1))
	}

	c := openCache(t, cacheFile, fake)
	var wg sync.WaitGroup
	for _, p := range paths {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			c.Metadata(context.Background(), p)
		}(p)
	}
	wg.Wait()

	reloaded := openCache(t, cacheFile, probetest.New())
	if reloaded.Len() != len(paths) {
		t.Errorf("persisted %d entries, want %d", reloaded.Len(), len(paths))
	}
}

func TestOpen_DropsUnparseableEntries(t *testing.T) {
	dir := t.TempDir()
	cacheFile := filepath.Join(dir, "probe.json")
	content := `{
  "/media/good.mkv": {"datetime": "2020-01-02T03:04:05.123456789Z", "probe_data": {"streams":[{"codec_name":"hevc","width":3840,"height":2160,"duration":"64.290000"}]}},
  "/media/bad.mkv": {"datetime": "2020-01-02T03:04:05Z", "probe_data": {"streams":[]}}
}`
	if err := os.WriteFile(cacheFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	c := openCache(t, cacheFile, probetest.New())
	if c.Len() != 1 {
		t.Fatalf("Len: got %d, want 1", c.Len())
	}
	want := time.Date(2020, 1, 2, 3, 4, 5, 123456789, time.UTC)
	md, ok := c.Lookup("/media/good.mkv", want)
	if !ok || md.Duration != 64.29 {
		t.Errorf("Lookup: ok=%v md=%+v", ok, md)
	}
	if _, ok := c.Lookup("/media/good.mkv", want.Add(time.Nanosecond)); ok {
		t.Error("Lookup must require an exact mtime match")
	}
}

func TestOpen_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	cacheFile := filepath.Join(dir, "probe.json")
	if err := os.WriteFile(cacheFile, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(cacheFile, probetest.New(), logger.Nop()); err == nil {
		t.Error("expected error for corrupt cache file")
	}
}

func TestReadOnly_DoesNotWrite(t *testing.T) {
	dir := t.TempDir()
	clip := touch(t, dir, "clip.mkv")
	cacheFile := filepath.Join(dir, "probe.json")

	fake := probetest.New()
	fake.SetStream("clip.mkv", "hevc", 3840, 2160, 64.29)
	c := openCache(t, cacheFile, fake, WithReadOnly())

	if md := c.Metadata(context.Background(), clip); !md.IsKnown() {
		t.Fatalf("got %+v", md)
	}
	if c.Len() != 1 {
		t.Errorf("entry should stay in memory")
	}
	if _, err := os.Stat(cacheFile); !os.IsNotExist(err) {
		t.Errorf("read-only cache wrote its file")
	}
	if err := c.Save(); err != ErrReadOnly {
		t.Errorf("Save: got %v, want ErrReadOnly", err)
	}
}
