package reveal

import (
	"context"
	"os"
	"os/exec"
	"reflect"
	"testing"
)

func TestCommand(t *testing.T) {
	tests := []struct {
		goos     string
		wantName string
		wantArgs []string
	}{
		{"darwin", "open", []string{"-R", "/out/a.mkv"}},
		{"windows", "explorer", []string{"/select,/out/a.mkv"}},
		{"linux", "xdg-open", []string{"/out"}},
		{"freebsd", "xdg-open", []string{"/out"}},
	}
	for _, tc := range tests {
		t.Run(tc.goos, func(t *testing.T) {
			name, args := Command(tc.goos, "/out/a.mkv")
			if name != tc.wantName || !reflect.DeepEqual(args, tc.wantArgs) {
				t.Fatalf("Command(%s) = %s %v, want %s %v", tc.goos, name, args, tc.wantName, tc.wantArgs)
			}
		})
	}
}

func TestDesktopRevealStartsLauncher(t *testing.T) {
	var gotName string
	var gotArgs []string
	orig := commandContext
	t.Cleanup(func() { commandContext = orig })
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		gotName = name
		gotArgs = args
		cs := []string{"-test.run=TestHelperProcess", "--"}
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
		return cmd
	}

	d := &Desktop{GOOS: "darwin"}
	if err := d.Reveal(context.Background(), "/tmp/out.mkv"); err != nil {
		t.Fatalf("Reveal: %v", err)
	}
	if gotName != "open" || !reflect.DeepEqual(gotArgs, []string{"-R", "/tmp/out.mkv"}) {
		t.Fatalf("unexpected launcher %s %v", gotName, gotArgs)
	}
}

func TestNopReveal(t *testing.T) {
	if err := (Nop{}).Reveal(context.Background(), "/x"); err != nil {
		t.Fatalf("Nop.Reveal: %v", err)
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	os.Exit(0)
}
