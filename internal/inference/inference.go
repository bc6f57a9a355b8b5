// Package inference implements neural mesh backends over HTTP: a hosted
// task-based provider and a self-hosted inference server.
package inference

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxMeshBytes caps downloaded meshes.
const maxMeshBytes = 256 << 20

func dataURI(image []byte, mime string) string {
	if mime == "" {
		mime = http.DetectContentType(image)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image)
}

func readError(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("%s error: status=%d body=%s", provider, resp.StatusCode, strings.TrimSpace(string(body)))
}

func readMesh(resp *http.Response) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMeshBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read mesh: %w", err)
	}
	if len(data) > maxMeshBytes {
		return nil, fmt.Errorf("mesh exceeds %d bytes", maxMeshBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty mesh")
	}
	return data, nil
}

// formatOf maps a response content type to a mesh format.
func formatOf(contentType, fallback string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "gltf-binary"), strings.Contains(ct, "glb"):
		return "glb"
	case strings.Contains(ct, "stl"):
		return "stl"
	default:
		return fallback
	}
}

func httpClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &http.Client{Timeout: timeout}
}
