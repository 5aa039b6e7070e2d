// Package device declares the collaborators the command layer drives. The
// recorder, camera pipeline, GPS receiver and power controller live behind
// these interfaces; the link never implements them itself.
package device

import "strconv"

// Status is the integer result of a collaborator call. Values other than
// StatusSuccess and StatusError are collaborator specific and relayed to
// the client unchanged.
type Status int

const (
	StatusSuccess Status = 0
	StatusError   Status = 1
)

func (s Status) OK() bool { return s == StatusSuccess }

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "status(" + strconv.Itoa(int(s)) + ")"
	}
}

// FromBool maps a boolean outcome onto the two common codes.
func FromBool(ok bool) Status {
	if ok {
		return StatusSuccess
	}
	return StatusError
}

// CameraInit is the encoder configuration handed to RecordInitCam.
type CameraInit struct {
	Width       int
	Height      int
	FPS         int
	GOP         int
	ControlRate int
	Bitrate     int
	Quality     int
	BufferSize  int
	Camera      int
	Audio       int
}

// DefaultCameraInit returns the 1080p30 configuration used when a request
// leaves a setting out. The audio source follows the camera.
func DefaultCameraInit(camera int) CameraInit {
	return CameraInit{
		Width:       1920,
		Height:      1080,
		FPS:         30,
		GOP:         30,
		ControlRate: 2,
		Bitrate:     6000000,
		Quality:     1,
		BufferSize:  90,
		Camera:      camera,
		Audio:       camera,
	}
}

// SystemInterface is the low-level media and transfer controller.
type SystemInterface interface {
	StartTransfer() Status
	StopTransfer() Status
	StartX1Import() Status
	StopX1Import() Status
	RemakeConnection() Status

	EnableWMICs() Status
	DisableWMICs() Status
	WMICCovertOn() Status
	WMICCovertOff() Status
	WMICOn() Status
	WMICOff() Status
	SpeakerMuteOn() Status
	SpeakerMuteOff() Status

	StreamFileDuration(name string) (Status, int32)
	StreamStartFile(name string) Status
	StreamStopFile() Status
	PlayCloseFile() Status
	PlayGetFileInfo(name string) (Status, string)

	SetOSDContent(x, y, camera, block int, text string) Status
	SetOSDStats(flags int) Status

	StartRecordMP4(name string, camera, pretime int) Status
	StopRecordMP4(camera int) Status
	StartRecordTS(name string, camera, pretime int) Status
	StopRecordTS(camera int) Status
	RecSyncNextMP4(name string, camera int) Status
	RecSyncToNext(name string, camera int) Status

	ServerStart() Status
	ServerStop() Status
	LiveStream(camera int, on bool) Status
	LiveViewStart(x, y, cx, cy, camera, display int) Status
	LiveViewStop(camera int) Status
	MemInitpool(size int) Status
	RecordInitCam(c CameraInit) Status
	Snapshot(camera int, name string) Status
}

// SystemFunctions is the application-level facade behind the general
// commands: recording, events, officer session and device state.
type SystemFunctions interface {
	StartRecord(camera, preSeconds int) Status
	StopRecord(camera int) Status
	// CaptureSnapshot takes a still and returns the file it was written to.
	CaptureSnapshot(camera int) (Status, string)
	Bookmark(camera int) Status

	Mute(mic string, mute bool) bool
	MicMuteState() map[string]bool
	Volume(device string) int
	SetVolume(device string, percent int) bool
	PlaySound()
	SetCovertInterviewMode(on bool)

	ModifyEvent(name string, values map[string]string) Status
	GetEvent(name string) (Status, map[string]string)
	ListEvents() (Status, []string)
	PendingEvents() []string

	IsInitialized() bool
	// Login reports success and, on failure, a message for the operator.
	Login(officer, password, partner, unit string) (bool, string)
	Logout()
	// StreamFile publishes name for HTTP playback and returns its URL path.
	StreamFile(name string) (Status, string)
	HandleTrigger(code int)
	Shutdown()

	Versions() map[string]string
	Report() Report
	GPS() GPSFix
	Network() NetworkConfig
}

// Services bundles the collaborators a command router is built with.
type Services struct {
	System    SystemInterface
	Functions SystemFunctions
	Paths     Paths
}
