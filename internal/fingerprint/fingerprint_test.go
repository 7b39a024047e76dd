package fingerprint

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/framefinder/internal/descriptor"
)

func TestReadFrames(t *testing.T) {
	input := `{"frame":"00_00_01_500.jpg","phash":"ff00ff00ff00ff00"}

{"frame":"custom.jpg","timestamp":2.25,"phash":"ff00ff00ff00ff01"}
`
	frames, err := ReadFrames(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadFrames failed: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if frames[0].Timestamp != 1.5 {
		t.Errorf("expected timestamp from name, got %v", frames[0].Timestamp)
	}
	if frames[1].Timestamp != 2.25 {
		t.Errorf("expected explicit timestamp, got %v", frames[1].Timestamp)
	}
	if frames[1].Descriptor.Kind() != descriptor.KindPerceptualHash {
		t.Errorf("expected phash descriptor, got %s", frames[1].Descriptor.Kind())
	}
}

func TestReadFramesErrors(t *testing.T) {
	cases := map[string]string{
		"no name":      `{"phash":"ff"}`,
		"no timestamp": `{"frame":"custom.jpg","phash":"ff"}`,
		"bad grid":     `{"frame":"00_00_00_000.jpg","rgb_grid":{"x":[1,2,3]}}`,
		"not json":     `frame 1`,
		"negative":     `{"frame":"a.jpg","timestamp":-1}`,
	}
	for name, input := range cases {
		if _, err := ReadFrames(strings.NewReader(input)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestWriteFramesRoundTrip(t *testing.T) {
	input := `{"frame":"00_00_00_000.jpg","timestamp":0,"rgb_grid":{"0,0":[1,2,3],"0,1":[4,5,6]}}
{"frame":"00_00_01_000.jpg","timestamp":1,"rgb_grid":{"0,0":[1,2,3],"0,1":[4,5,7]}}
`
	frames, err := ReadFrames(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadFrames failed: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteFrames(&buf, frames); err != nil {
		t.Fatalf("WriteFrames failed: %v", err)
	}
	if buf.String() != input {
		t.Errorf("expected\n%s\ngot\n%s", input, buf.String())
	}
}

func writeScript(t *testing.T, body string) []string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	path := filepath.Join(t.TempDir(), "fingerprint.sh")
	if err := os.WriteFile(path, []byte(body), 0755); err != nil {
		t.Fatal(err)
	}
	return []string{sh, path}
}

func TestCommandFingerprint(t *testing.T) {
	argv := writeScript(t, `#!/bin/sh
echo "{\"frame\":\"00_00_00_000.jpg\",\"rgb_grid\":{\"0,0\":[1,1,1]}}"
echo "{\"frame\":\"00_00_01_000.jpg\",\"rgb_grid\":{\"0,0\":[2,2,2]}}"
echo "$@" >&2
`)

	c, err := NewCommand(zerolog.Nop(), argv, 5)
	if err != nil {
		t.Fatalf("NewCommand failed: %v", err)
	}
	if got := strings.Join(c.args("/frames", descriptor.KindColorGrid), " "); !strings.HasSuffix(got, "--kind rgb --grid-size 5 /frames") {
		t.Errorf("unexpected args %q", got)
	}

	frames, err := c.Fingerprint(context.Background(), t.TempDir(), descriptor.KindColorGrid)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if len(frames) != 2 || frames[1].Timestamp != 1 {
		t.Errorf("unexpected frames %+v", frames)
	}

	if _, err := c.Fingerprint(context.Background(), t.TempDir(), descriptor.KindPerceptualHash); !errors.Is(err, descriptor.ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch for wrong kind, got %v", err)
	}
}

func TestCommandFailure(t *testing.T) {
	argv := writeScript(t, "#!/bin/sh\necho boom >&2\nexit 3\n")
	c, err := NewCommand(zerolog.Nop(), argv, 5)
	if err != nil {
		t.Fatalf("NewCommand failed: %v", err)
	}
	if _, err := c.Fingerprint(context.Background(), t.TempDir(), descriptor.KindColorGrid); err == nil {
		t.Error("expected error from failing command")
	}
}

func TestNewCommandRequiresArgv(t *testing.T) {
	if _, err := NewCommand(zerolog.Nop(), nil, 5); !errors.Is(err, ErrNoCommand) {
		t.Errorf("expected ErrNoCommand, got %v", err)
	}
}
