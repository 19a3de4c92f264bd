// Package runtimecfg delivers runtime credentials as a browser script and
// reads them back from such a script.
package runtimecfg

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// GlobalName is the window property the script assigns.
const GlobalName = "__ADGEN_CONFIG__"

const (
	KeyTextAPIKey         = "textApiKey"
	KeyImageAPIKey        = "imageApiKey"
	KeyImageProvider      = "imageProvider"
	KeyRazorpayKeyID      = "razorpayKeyId"
	KeyFirebaseAPIKey     = "firebaseApiKey"
	KeyFirebaseAuthDomain = "firebaseAuthDomain"
	KeyFirebaseProjectID  = "firebaseProjectId"
	KeyAuthProvider       = "authProvider"
)

// Values are the named settings exposed to clients.
type Values map[string]string

// Get returns the value of key or "".
func (v Values) Get(key string) string { return v[key] }

// Render produces the script served at /config.js. Empty values are left
// out.
func Render(v Values) []byte {
	clean := make(map[string]string, len(v))
	for k, val := range v {
		if val != "" {
			clean[k] = val
		}
	}
	body, _ := json.Marshal(clean)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "window.%s = %s;\n", GlobalName, body)
	return buf.Bytes()
}

// Parse extracts Values from a rendered script: the JSON object between the
// first '{' and the last '}'.
func Parse(script []byte) (Values, error) {
	start := bytes.IndexByte(script, '{')
	end := bytes.LastIndexByte(script, '}')
	if start < 0 || end <= start {
		return nil, errors.New("config script has no object")
	}
	var v Values
	if err := json.Unmarshal(script[start:end+1], &v); err != nil {
		return nil, fmt.Errorf("decode config object: %w", err)
	}
	return v, nil
}
