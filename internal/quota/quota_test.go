package quota

import "testing"

func TestParseLimitAndFormat(t *testing.T) {
	bytes, err := ParseLimit("10GB")
	if err != nil {
		t.Fatalf("ParseLimit: %v", err)
	}
	if bytes != 10*1000*1000*1000 {
		t.Fatalf("bytes = %d", bytes)
	}
	if got := FormatLimit(bytes); got == "" {
		t.Fatalf("FormatLimit produced empty string")
	}
}

func TestParseLimitInvalid(t *testing.T) {
	if _, err := ParseLimit("not-a-size"); err == nil {
		t.Fatalf("expected error for invalid size")
	}
}

func TestFakeManagerCreateQuotaControl(t *testing.T) {
	m := NewFake()
	c, err := m.CreateQuotaControl("/containers/c_X", "5GB")
	if err != nil {
		t.Fatalf("CreateQuotaControl: %v", err)
	}
	if c.Directory() != "/containers/c_X" {
		t.Fatalf("Directory() = %q", c.Directory())
	}
	if c.LimitBytes() != 5*1000*1000*1000 {
		t.Fatalf("LimitBytes() = %d", c.LimitBytes())
	}
	if err := c.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
}
