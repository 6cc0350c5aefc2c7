package extract

import "testing"

func TestJobID(t *testing.T) {
	cases := []struct {
		file string
		want string
	}{
		{"1712345678.pdf", "1712345678"},
		{"report.PDF", "report"},
		{"noext", "noext"},
	}
	for _, c := range cases {
		if got := JobID(c.file); got != c.want {
			t.Fatalf("JobID(%q) = %q, want %q", c.file, got, c.want)
		}
	}
}

func TestPageWindow(t *testing.T) {
	cases := []struct {
		name      string
		start     int
		count     int
		total     int
		wantStart int
		wantCount int
		wantErr   bool
	}{
		{"whole document by default", 0, 0, 10, 1, 10, false},
		{"explicit range", 3, 4, 10, 3, 4, false},
		{"count overrunning the end is clipped", 8, 5, 10, 8, 3, false},
		{"start below one snaps to one", -2, 2, 10, 1, 2, false},
		{"single page document", 1, 0, 1, 1, 1, false},
		{"start beyond last page", 11, 1, 10, 0, 0, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			start, count, err := pageWindow(c.start, c.count, c.total)
			if c.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if start != c.wantStart || count != c.wantCount {
				t.Fatalf("got (%d,%d), want (%d,%d)", start, count, c.wantStart, c.wantCount)
			}
		})
	}
}

func TestNewEngine(t *testing.T) {
	if _, err := NewEngine("tesseract", "", nil); err != nil {
		t.Fatalf("tesseract engine error: %v", err)
	}
	if _, err := NewEngine("ollama", "", nil); err == nil {
		t.Fatalf("expected error for ollama engine without model")
	}
	if _, err := NewEngine("magic", "", nil); err == nil {
		t.Fatalf("expected error for unknown engine")
	}
}
