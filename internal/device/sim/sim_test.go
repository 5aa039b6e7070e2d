package sim

import (
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/codewiresh/h1link/internal/config"
	"github.com/codewiresh/h1link/internal/device"
	"github.com/codewiresh/h1link/internal/store"
)

var clock = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newSim(t *testing.T, mutate ...func(*Options)) (*Simulator, *store.SQLiteStore) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.NewSQLiteStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	opts := Options{
		Store: st,
		Paths: device.Paths{
			Videos:   filepath.Join(dir, "videos"),
			XML:      filepath.Join(dir, "xml"),
			Snapshot: filepath.Join(dir, "snap"),
		},
		Cameras:  2,
		Officers: []config.Officer{{ID: "1234", Name: "J. Doe", PasswordHash: string(hash)}},
		Now:      func() time.Time { return clock },
	}
	for _, m := range mutate {
		m(&opts)
	}
	s, err := New(opts)
	require.NoError(t, err)
	return s, st
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestRecordCreatesPendingEvent(t *testing.T) {
	s, st := newSim(t)

	require.Equal(t, device.StatusSuccess, s.StartRecord(1, -1))
	assert.Equal(t, device.StatusError, s.StartRecord(1, -1), "camera already recording")
	assert.Equal(t, device.StatusError, s.StartRecord(2, -1), "camera out of range")

	status, names := s.ListEvents()
	require.Equal(t, device.StatusSuccess, status)
	assert.Equal(t, []string{"20240501_120000_cam1"}, names)
	assert.Equal(t, names, s.PendingEvents())

	ev, err := st.EventGet(context.Background(), names[0])
	require.NoError(t, err)
	assert.NotContains(t, ev.Fields, "pre")

	r := s.Report()
	require.Len(t, r.Cameras, 2)
	assert.True(t, r.Cameras[1].Recording)
	assert.False(t, r.Cameras[0].Recording)

	assert.Equal(t, device.StatusSuccess, s.StopRecord(1))
	assert.Equal(t, device.StatusError, s.StopRecord(1))
}

func TestTransferUploadsPending(t *testing.T) {
	s, _ := newSim(t)
	require.Equal(t, device.StatusSuccess, s.StartRecord(0, 10))
	require.Len(t, s.PendingEvents(), 1)

	require.Equal(t, device.StatusSuccess, s.StartTransfer())
	assert.Empty(t, s.PendingEvents())
	assert.Equal(t, "uploading", s.Report().WLStatus)

	s.StopTransfer()
	assert.Equal(t, "idle", s.Report().WLStatus)
}

func TestEvents(t *testing.T) {
	s, _ := newSim(t)
	require.Equal(t, device.StatusSuccess, s.StartRecord(0, 5))
	_, names := s.ListEvents()
	name := names[0]

	assert.Equal(t, device.StatusSuccess, s.ModifyEvent(name, map[string]string{"category": "dui"}))
	assert.Equal(t, device.StatusError, s.ModifyEvent("missing", map[string]string{"a": "b"}))

	status, fields := s.GetEvent(name)
	require.Equal(t, device.StatusSuccess, status)
	assert.Equal(t, "dui", fields["category"])
	assert.Equal(t, "5", fields["pre"])
	assert.Equal(t, "0", fields["camera"])

	status, _ = s.GetEvent("missing")
	assert.Equal(t, device.StatusError, status)
}

func TestBookmarkTiesToRunningEvent(t *testing.T) {
	s, st := newSim(t)
	ctx := context.Background()

	require.Equal(t, device.StatusSuccess, s.Bookmark(0))
	require.Equal(t, device.StatusSuccess, s.StartRecord(0, -1))
	require.Equal(t, device.StatusSuccess, s.Bookmark(0))
	assert.Equal(t, device.StatusError, s.Bookmark(5))

	marks, err := st.BookmarkList(ctx, 0)
	require.NoError(t, err)
	require.Len(t, marks, 2)
	assert.Empty(t, marks[0].Event)
	assert.Equal(t, "20240501_120000_cam0", marks[1].Event)
}

func TestAudioSettingsPersist(t *testing.T) {
	s, _ := newSim(t)

	assert.Equal(t, map[string]bool{"wmic1": false, "wmic2": false}, s.MicMuteState())
	assert.True(t, s.Mute("wmic2", true))
	assert.False(t, s.Mute("wmic7", true))
	assert.Equal(t, map[string]bool{"wmic1": false, "wmic2": true}, s.MicMuteState())

	assert.Equal(t, defaultVolume, s.Volume("speaker"))
	assert.True(t, s.SetVolume("speaker", 80))
	assert.Equal(t, 80, s.Volume("speaker"))
	assert.False(t, s.SetVolume("speaker", 101))
	assert.False(t, s.SetVolume("siren", 10))
	assert.Equal(t, 0, s.Volume("siren"))
}

func TestLogin(t *testing.T) {
	s, _ := newSim(t)

	ok, msg := s.Login("9999", "s3cret", "", "")
	assert.False(t, ok)
	assert.Equal(t, "unknown officer", msg)

	ok, msg = s.Login("1234", "wrong", "", "")
	assert.False(t, ok)
	assert.Equal(t, "invalid password", msg)

	ok, msg = s.Login("1234", "s3cret", "5678", "12")
	assert.True(t, ok)
	assert.Empty(t, msg)

	r := s.Report()
	assert.True(t, r.Login)
	assert.Equal(t, "J. Doe", r.User)
	assert.Equal(t, "12", r.Unit)

	s.Logout()
	assert.False(t, s.Report().Login)
}

func TestCaptureSnapshotWritesImage(t *testing.T) {
	s, _ := newSim(t)

	status, name := s.CaptureSnapshot(1)
	require.Equal(t, device.StatusSuccess, status)
	f, err := os.Open(name)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())

	status, name = s.CaptureSnapshot(3)
	assert.Equal(t, device.StatusError, status)
	assert.Empty(t, name)
}

func TestPlayback(t *testing.T) {
	s, _ := newSim(t)
	require.NoError(t, os.MkdirAll(s.opts.Paths.XML, 0o755))
	clip := filepath.Join(s.opts.Paths.XML, "clip.mp4")
	require.NoError(t, os.WriteFile(clip, make([]byte, 3*bytesPerSecond), 0o644))

	status, d := s.StreamFileDuration("clip.mp4")
	require.Equal(t, device.StatusSuccess, status)
	assert.EqualValues(t, 3, d)
	assert.Equal(t, device.StatusSuccess, s.PlayCloseFile())
	assert.Equal(t, device.StatusError, s.PlayCloseFile())

	status, _ = s.StreamFileDuration("nope.mp4")
	assert.Equal(t, device.StatusError, status)

	status, url := s.StreamFile(clip)
	require.Equal(t, device.StatusSuccess, status)
	assert.Equal(t, "/stream/clip.mp4", url)
	assert.Equal(t, "clip.mp4", filepath.Base(s.Report().StreamingFile))
	assert.Equal(t, device.StatusSuccess, s.StreamStopFile())
}

func TestPipelineCommands(t *testing.T) {
	s, _ := newSim(t)

	assert.Equal(t, device.StatusError, s.RecSyncNextMP4("b.mp4", 0))
	assert.Equal(t, device.StatusSuccess, s.StartRecordMP4("a.mp4", 0, 5))
	assert.Equal(t, device.StatusError, s.StartRecordTS("a.ts", 0, 5))
	assert.Equal(t, device.StatusSuccess, s.RecSyncNextMP4("b.mp4", 0))
	assert.Equal(t, device.StatusSuccess, s.StopRecordMP4(0))

	assert.Equal(t, device.StatusError, s.LiveViewStart(0, 0, 0, 480, 0, 0))
	assert.Equal(t, device.StatusSuccess, s.LiveViewStart(0, 0, 640, 480, 0, 0))
	assert.Equal(t, device.StatusSuccess, s.LiveViewStop(0))

	c := device.DefaultCameraInit(1)
	c.Width, c.Height = 1280, 720
	assert.Equal(t, device.StatusSuccess, s.RecordInitCam(c))
	assert.Equal(t, "1280x720", s.Report().Cameras[1].Resolution)

	assert.Equal(t, device.StatusError, s.MemInitpool(0))
	assert.Equal(t, device.StatusError, s.SetOSDContent(0, 0, 9, 1, "x"))
}

func TestTriggerAndShutdown(t *testing.T) {
	var stopped bool
	s, _ := newSim(t, func(o *Options) { o.OnShutdown = func() { stopped = true } })

	s.HandleTrigger(4)
	notices := s.Report().Notices
	require.Len(t, notices, 1)
	assert.Equal(t, "4", notices[0].Code)

	require.True(t, s.IsInitialized())
	s.Shutdown()
	assert.True(t, stopped)
	assert.False(t, s.IsInitialized())
}

func TestVersions(t *testing.T) {
	s, _ := newSim(t, func(o *Options) { o.Versions = map[string]string{"mcu": "2.3"} })
	assert.Equal(t, map[string]string{"mcu": "2.3", "firmware": "simulator"}, s.Versions())
}
