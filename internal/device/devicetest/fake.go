// Package devicetest provides a recording fake of the device collaborators.
package devicetest

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/codewiresh/h1link/internal/device"
)

// Fake implements device.SystemInterface and device.SystemFunctions. Every
// call is recorded as "Method(arg,arg)" in the order it arrives. Calls
// return StatusSuccess unless Results names the method.
type Fake struct {
	mu    sync.Mutex
	calls []string
	gates map[string]chan struct{}

	Results map[string]device.Status

	Duration     int32
	FileInfo     string
	SnapshotFile string
	URLPath      string
	Mics         map[string]bool
	Volumes      map[string]int
	Events       map[string]map[string]string
	Pending      []string
	Initialized  bool
	LoginOK      bool
	LoginMessage string
	VersionInfo  map[string]string
	StatusReport device.Report
	Fix          device.GPSFix
	NetConfig    device.NetworkConfig
}

var (
	_ device.SystemInterface = (*Fake)(nil)
	_ device.SystemFunctions = (*Fake)(nil)
)

// New returns a Fake with two microphones, a speaker and one stored event.
func New() *Fake {
	return &Fake{
		Results:      map[string]device.Status{},
		Duration:     42,
		FileInfo:     "h264 1920x1080",
		SnapshotFile: "/snapshots/cam0.jpg",
		URLPath:      "/stream/file.mp4",
		Mics:         map[string]bool{"wmic1": false, "wmic2": true},
		Volumes:      map[string]int{"wmic1": 50, "wmic2": 60, "speaker": 70},
		Events:       map[string]map[string]string{"ev1": {"category": "traffic"}},
		Initialized:  true,
		LoginOK:      true,
		VersionInfo:  map[string]string{"firmware": "1.0.0"},
	}
}

func (f *Fake) record(method string, args ...any) device.Status {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	f.mu.Lock()
	f.calls = append(f.calls, method+"("+strings.Join(parts, ",")+")")
	gate := f.gates[method]
	st, ok := f.Results[method]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if ok {
		return st
	}
	return device.StatusSuccess
}

// Block makes calls to method wait, after being recorded, until the
// returned release func runs.
func (f *Fake) Block(method string) (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	if f.gates == nil {
		f.gates = map[string]chan struct{}{}
	}
	f.gates[method] = gate
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.gates, method)
			f.mu.Unlock()
			close(gate)
		})
	}
}

// Calls returns a copy of the recorded calls.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// Called reports whether method was invoked at least once.
func (f *Fake) Called(method string) bool {
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, method+"(") {
			return true
		}
	}
	return false
}

// SetResult makes method return st from now on.
func (f *Fake) SetResult(method string, st device.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Results[method] = st
}

func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// SystemInterface

func (f *Fake) StartTransfer() device.Status    { return f.record("StartTransfer") }
func (f *Fake) StopTransfer() device.Status     { return f.record("StopTransfer") }
func (f *Fake) StartX1Import() device.Status    { return f.record("StartX1Import") }
func (f *Fake) StopX1Import() device.Status     { return f.record("StopX1Import") }
func (f *Fake) RemakeConnection() device.Status { return f.record("RemakeConnection") }
func (f *Fake) EnableWMICs() device.Status      { return f.record("EnableWMICs") }
func (f *Fake) DisableWMICs() device.Status     { return f.record("DisableWMICs") }
func (f *Fake) WMICCovertOn() device.Status     { return f.record("WMICCovertOn") }
func (f *Fake) WMICCovertOff() device.Status    { return f.record("WMICCovertOff") }
func (f *Fake) WMICOn() device.Status           { return f.record("WMICOn") }
func (f *Fake) WMICOff() device.Status          { return f.record("WMICOff") }
func (f *Fake) SpeakerMuteOn() device.Status    { return f.record("SpeakerMuteOn") }
func (f *Fake) SpeakerMuteOff() device.Status   { return f.record("SpeakerMuteOff") }

func (f *Fake) StreamFileDuration(name string) (device.Status, int32) {
	return f.record("StreamFileDuration", name), f.Duration
}

func (f *Fake) StreamStartFile(name string) device.Status {
	return f.record("StreamStartFile", name)
}

func (f *Fake) StreamStopFile() device.Status { return f.record("StreamStopFile") }
func (f *Fake) PlayCloseFile() device.Status  { return f.record("PlayCloseFile") }

func (f *Fake) PlayGetFileInfo(name string) (device.Status, string) {
	return f.record("PlayGetFileInfo", name), f.FileInfo
}

func (f *Fake) SetOSDContent(x, y, camera, block int, text string) device.Status {
	return f.record("SetOSDContent", x, y, camera, block, text)
}

func (f *Fake) SetOSDStats(flags int) device.Status { return f.record("SetOSDStats", flags) }

func (f *Fake) StartRecordMP4(name string, camera, pretime int) device.Status {
	return f.record("StartRecordMP4", name, camera, pretime)
}

func (f *Fake) StopRecordMP4(camera int) device.Status { return f.record("StopRecordMP4", camera) }

func (f *Fake) StartRecordTS(name string, camera, pretime int) device.Status {
	return f.record("StartRecordTS", name, camera, pretime)
}

func (f *Fake) StopRecordTS(camera int) device.Status { return f.record("StopRecordTS", camera) }

func (f *Fake) RecSyncNextMP4(name string, camera int) device.Status {
	return f.record("RecSyncNextMP4", name, camera)
}

func (f *Fake) RecSyncToNext(name string, camera int) device.Status {
	return f.record("RecSyncToNext", name, camera)
}

func (f *Fake) ServerStart() device.Status { return f.record("ServerStart") }
func (f *Fake) ServerStop() device.Status  { return f.record("ServerStop") }

func (f *Fake) LiveStream(camera int, on bool) device.Status {
	return f.record("LiveStream", camera, on)
}

func (f *Fake) LiveViewStart(x, y, cx, cy, camera, display int) device.Status {
	return f.record("LiveViewStart", x, y, cx, cy, camera, display)
}

func (f *Fake) LiveViewStop(camera int) device.Status { return f.record("LiveViewStop", camera) }
func (f *Fake) MemInitpool(size int) device.Status    { return f.record("MemInitpool", size) }

func (f *Fake) RecordInitCam(c device.CameraInit) device.Status {
	return f.record("RecordInitCam", c.Width, c.Height, c.FPS, c.GOP, c.ControlRate,
		c.Bitrate, c.Quality, c.BufferSize, c.Camera, c.Audio)
}

func (f *Fake) Snapshot(camera int, name string) device.Status {
	return f.record("Snapshot", camera, name)
}

// SystemFunctions

func (f *Fake) StartRecord(camera, pre int) device.Status {
	return f.record("StartRecord", camera, pre)
}

func (f *Fake) StopRecord(camera int) device.Status { return f.record("StopRecord", camera) }
func (f *Fake) Bookmark(camera int) device.Status   { return f.record("Bookmark", camera) }

func (f *Fake) CaptureSnapshot(camera int) (device.Status, string) {
	return f.record("CaptureSnapshot", camera), f.SnapshotFile
}

func (f *Fake) Mute(mic string, mute bool) bool {
	if !f.record("Mute", mic, mute).OK() {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Mics[mic]; !ok {
		return false
	}
	f.Mics[mic] = mute
	return true
}

func (f *Fake) MicMuteState() map[string]bool {
	f.record("MicMuteState")
	f.mu.Lock()
	defer f.mu.Unlock()
	return maps.Clone(f.Mics)
}

func (f *Fake) Volume(dev string) int {
	f.record("Volume", dev)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Volumes[dev]
}

func (f *Fake) SetVolume(dev string, percent int) bool {
	if !f.record("SetVolume", dev, percent).OK() {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Volumes[dev]; !ok {
		return false
	}
	f.Volumes[dev] = percent
	return true
}

func (f *Fake) PlaySound()                     { f.record("PlaySound") }
func (f *Fake) SetCovertInterviewMode(on bool) { f.record("SetCovertInterviewMode", on) }

func (f *Fake) ModifyEvent(name string, values map[string]string) device.Status {
	keys := slices.Sorted(maps.Keys(values))
	return f.record("ModifyEvent", name, strings.Join(keys, "+"))
}

func (f *Fake) GetEvent(name string) (device.Status, map[string]string) {
	s := f.record("GetEvent", name)
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.Events[name]
	if !ok {
		return device.StatusError, nil
	}
	return s, maps.Clone(ev)
}

func (f *Fake) ListEvents() (device.Status, []string) {
	s := f.record("ListEvents")
	f.mu.Lock()
	defer f.mu.Unlock()
	return s, slices.Sorted(maps.Keys(f.Events))
}

func (f *Fake) PendingEvents() []string {
	f.record("PendingEvents")
	return slices.Clone(f.Pending)
}

func (f *Fake) IsInitialized() bool {
	f.record("IsInitialized")
	return f.Initialized
}

func (f *Fake) Login(officer, password, partner, unit string) (bool, string) {
	f.record("Login", officer, password, partner, unit)
	return f.LoginOK, f.LoginMessage
}

func (f *Fake) Logout()                { f.record("Logout") }
func (f *Fake) HandleTrigger(code int) { f.record("HandleTrigger", code) }
func (f *Fake) Shutdown()              { f.record("Shutdown") }

func (f *Fake) StreamFile(name string) (device.Status, string) {
	return f.record("StreamFile", name), f.URLPath
}

func (f *Fake) Versions() map[string]string {
	f.record("Versions")
	return maps.Clone(f.VersionInfo)
}

func (f *Fake) Report() device.Report {
	f.record("Report")
	return f.StatusReport
}

func (f *Fake) GPS() device.GPSFix {
	f.record("GPS")
	return f.Fix
}

func (f *Fake) Network() device.NetworkConfig {
	f.record("Network")
	return f.NetConfig
}
