package version

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Version holds the current build version. Override with
// -ldflags "-X github.com/sisyphus-worker/internal/version.Version=v1.2.3".
var Version = "dev"

const (
	separator = "────────────────────────────────────────────────────────────"
	banner    = `
     _                 _
 ___(_)___ _   _ _ __ | |__  _   _ ___
/ __| / __| | | | '_ \| '_ \| | | / __|
\__ \ \__ \ |_| | |_) | | | | |_| \__ \
|___/_|___/\__, | .__/|_| |_|\__,_|___/
           |___/|_|
`
)

// Banner returns the ASCII-art project banner.
func Banner() string {
	return strings.Trim(banner, "\n")
}

// PrintBanner writes the decorated banner and version info to w (stdout if nil).
func PrintBanner(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, separator)
	fmt.Fprintln(w, Banner())
	fmt.Fprintf(w, "\n  sisyphus-worker %s\n", Version)
	fmt.Fprintf(w, "  Media Transcoding Pipeline Worker\n")
	fmt.Fprintln(w, separator)
	fmt.Fprintln(w)
}
