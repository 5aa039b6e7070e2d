package device

import "testing"

func TestStatus(t *testing.T) {
	if !StatusSuccess.OK() || StatusError.OK() {
		t.Fatal("OK() disagrees with the status codes")
	}
	if FromBool(true) != StatusSuccess || FromBool(false) != StatusError {
		t.Fatal("FromBool mapping wrong")
	}
	if got := Status(7).String(); got != "status(7)" {
		t.Errorf("String = %q", got)
	}
}

func TestPathsResolve(t *testing.T) {
	tests := []struct {
		xml, name, want string
	}{
		{"/data/xml/", "event.xml", "/data/xml/event.xml"},
		{"/data/xml", "event.xml", "/data/xml/event.xml"},
		{"/data/xml/", "/etc/hostname", "/etc/hostname"},
		{"/data/xml/", "", ""},
		{"", "event.xml", "event.xml"},
	}
	for _, tt := range tests {
		p := Paths{XML: tt.xml}
		if got := p.Resolve(tt.name); got != tt.want {
			t.Errorf("Resolve(%q) with xml=%q = %q, want %q", tt.name, tt.xml, got, tt.want)
		}
	}
}

func TestFocusX1DCIM(t *testing.T) {
	if got := (Paths{FocusX1: "/media/x1/"}).FocusX1DCIM(); got != "/media/x1/DCIM/" {
		t.Errorf("FocusX1DCIM = %q", got)
	}
	if got := (Paths{}).FocusX1DCIM(); got != "" {
		t.Errorf("FocusX1DCIM on empty = %q", got)
	}
}

func TestDefaultCameraInit(t *testing.T) {
	c := DefaultCameraInit(2)
	if c.Width != 1920 || c.Height != 1080 || c.FPS != 30 || c.GOP != 30 {
		t.Errorf("geometry = %+v", c)
	}
	if c.ControlRate != 2 || c.Bitrate != 6000000 || c.Quality != 1 || c.BufferSize != 90 {
		t.Errorf("encoder = %+v", c)
	}
	if c.Camera != 2 || c.Audio != 2 {
		t.Errorf("camera/audio = %d/%d, want 2/2", c.Camera, c.Audio)
	}
}
