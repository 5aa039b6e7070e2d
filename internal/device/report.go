package device

import "strings"

// Paths is the storage layout of the recorder.
type Paths struct {
	Videos   string `toml:"videos"`
	XML      string `toml:"xml"`
	XMLFirst string `toml:"xml_first"`
	Snapshot string `toml:"snapshot"`
	Failsafe string `toml:"failsafe"`
	Cache    string `toml:"cache"`
	FocusX1  string `toml:"focus_x1"`
}

// FocusX1DCIM is where an attached X1 camera stores its media.
func (p Paths) FocusX1DCIM() string {
	if p.FocusX1 == "" {
		return ""
	}
	return strings.TrimSuffix(p.FocusX1, "/") + "/DCIM/"
}

// Resolve maps a relative file name into the XML directory. Absolute and
// empty names are returned unchanged.
func (p Paths) Resolve(name string) string {
	if name == "" || strings.HasPrefix(name, "/") {
		return name
	}
	dir := p.XML
	if dir != "" && !strings.HasSuffix(dir, "/") {
		dir += "/"
	}
	return dir + name
}

type CameraStatus struct {
	ID                int    `json:"id"`
	Recording         bool   `json:"recording"`
	PostRecordingEnd  int    `json:"postrecordingend"`
	RecordingFailsafe bool   `json:"recordingfailsafe"`
	Resolution        string `json:"resolution"`
}

type Notice struct {
	Sequence int    `json:"sequence"`
	Seconds  int    `json:"seconds"`
	Notice   string `json:"notice"`
	Code     string `json:"code"`
}

// Report is the device state returned by the status command. Date and time
// are filled in by the command layer.
type Report struct {
	Cameras         []CameraStatus  `json:"camera"`
	Notices         []Notice        `json:"notices"`
	ErrorConditions map[string]bool `json:"errorconditions"`

	User           string `json:"user"`
	Officer        string `json:"officer"`
	Partner        string `json:"partner"`
	Unit           string `json:"unit"`
	Login          bool   `json:"login"`
	EmergencyLogin bool   `json:"emergencylogin"`
	Initialized    bool   `json:"initialized"`
	SyncControl    bool   `json:"synccontrol"`
	StreamingFile  string `json:"streamingfile,omitempty"`
	CovertMode     bool   `json:"covertmode"`

	WLStatus           string `json:"wlstatus"`
	UploadFileName     string `json:"uploadfilename"`
	UploadSize         int64  `json:"uploadsize"`
	UploadedSize       int64  `json:"uploadedsize"`
	FilesUploaded      int    `json:"filesuploaded"`
	FilesToUpload      int    `json:"filestoupload"`
	DownloadFileName   string `json:"downloadfilename"`
	UploadPercentage   int    `json:"uploadpercentage"`
	DownloadPercentage int    `json:"downloadpercentage"`
	UploadSpeed        string `json:"uploadspeed"`
	DownloadSpeed      string `json:"downloadspeed"`
	SignalStrength     int    `json:"signalstrength"`
	AccessPoint        string `json:"accesspoint"`

	InternalBatteryVoltage float64 `json:"internalbatteryvoltage"`
	InputVoltage           int     `json:"inputvoltage"`
	PowerACC               bool    `json:"poweracc"`
	DeviceTemperature      int     `json:"devicetemperature"`
	GPSStatus              string  `json:"gpsstatus"`
	PenDriveStatus         string  `json:"pendrivestatus"`
}

type GPSFix struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Altitude   float64 `json:"altitude"`
	Speed      float64 `json:"speed"`
	Track      float64 `json:"track"`
	Time       string  `json:"time"`
	Satellites int     `json:"satellites"`
	Lock       int     `json:"lock"`
}

// NetworkConfig is the uplink configuration reported by the network
// command alongside the host's interface state.
type NetworkConfig struct {
	SSID   string         `json:"SSID"`
	Config map[string]any `json:"config"`
}
