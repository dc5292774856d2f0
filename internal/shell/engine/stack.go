package engine

import (
	"net/url"
	"os"
	"path/filepath"

	"github.com/dockgeac/dockgeac/internal/core/deployment"
)

// =============================================================================
// Stack Entity
// =============================================================================

// AcceptedComposeFileNames are the file names recognised as a stack's
// compose document, in lookup order. The first name is the default for
// new stacks.
var AcceptedComposeFileNames = []string{
	"compose.yaml",
	"compose.yml",
	"docker-compose.yml",
	"docker-compose.yaml",
}

// Stack is the in-memory representation of one stack. Instances are
// created lazily by the engine's registry and discarded on delete.
type Stack struct {
	Name            string
	ComposeYAML     string
	ComposeENV      string
	ComposeFileName string
	Status          deployment.StackStatus

	// Managed is true for stacks with a compose file under the stacks
	// directory; false for containers observed on the runtime only.
	Managed bool
}

// StackView is the presentation object pushed to clients.
type StackView struct {
	Name              string `json:"name"`
	Status            int    `json:"status"`
	Tags              []any  `json:"tags"`
	IsManagedByDockge bool   `json:"isManagedByDockge"`
	ComposeFileName   string `json:"composeFileName"`
	Endpoint          string `json:"endpoint"`
	ComposeYAML       string `json:"composeYAML,omitempty"`
	ComposeENV        string `json:"composeENV,omitempty"`
	PrimaryHostname   string `json:"primaryHostname"`
}

// View renders the stack for a given endpoint. The primary hostname comes
// from settings when set, otherwise from the endpoint's host, otherwise
// "localhost".
func (s *Stack) View(endpoint, primaryHostname string) StackView {
	hostname := primaryHostname
	if hostname == "" {
		hostname = endpointHostname(endpoint)
	}
	if hostname == "" {
		hostname = "localhost"
	}
	return StackView{
		Name:              s.Name,
		Status:            int(s.Status),
		Tags:              []any{},
		IsManagedByDockge: s.Managed,
		ComposeFileName:   s.ComposeFileName,
		Endpoint:          endpoint,
		ComposeYAML:       s.ComposeYAML,
		ComposeENV:        s.ComposeENV,
		PrimaryHostname:   hostname,
	}
}

func endpointHostname(endpoint string) string {
	if endpoint == "" {
		return ""
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Hostname() == "" {
		// A bare "host:port" endpoint parses as an opaque URL.
		if u2, err2 := url.Parse("//" + endpoint); err2 == nil {
			return u2.Hostname()
		}
		return ""
	}
	return u.Hostname()
}

// =============================================================================
// On-Disk Layout
// =============================================================================

// stackDir returns the directory a stack lives in.
func stackDir(stacksDir, name string) string {
	return filepath.Join(stacksDir, name)
}

// findComposeFile returns the stack's compose file name, first accepted
// match wins. ok is false when the directory holds none.
func findComposeFile(dir string) (string, bool) {
	for _, name := range AcceptedComposeFileNames {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return name, true
		}
	}
	return "", false
}
