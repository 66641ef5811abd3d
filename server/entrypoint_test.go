package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"go.viam.com/test"
	goutils "go.viam.com/utils"
	"go.viam.com/utils/testutils"

	"go.viam.com/sphereloc/logging"
)

const testCalibration = `{
	"reference_resolution": {"width_px": 3000, "height_px": 4000},
	"camera_matrix": [[3000, 0, 1500], [0, 3000, 1900], [0, 0, 1]]
}`

func writeConfig(t *testing.T, storeDisabled bool) string {
	t.Helper()
	dir := t.TempDir()
	test.That(t, os.WriteFile(filepath.Join(dir, "camera.json"), []byte(testCalibration), 0o600), test.ShouldBeNil)
	cfg := map[string]interface{}{
		"object":      map[string]interface{}{"diameter": 6.46, "units": "cm"},
		"calibration": map[string]interface{}{"file": "camera.json"},
		"store": map[string]interface{}{
			"path": filepath.Join(dir, "sphereloc.db"), "disabled": storeDisabled, "retention": "24h",
		},
		"web": map[string]interface{}{"upload_dir": filepath.Join(dir, "captured_images"), "shutdown_timeout": "1s"},
		"log": map[string]interface{}{"file": filepath.Join(dir, "sphereloc.log")},
	}
	buf, err := json.Marshal(cfg)
	test.That(t, err, test.ShouldBeNil)
	path := filepath.Join(dir, "sphereloc.json")
	test.That(t, os.WriteFile(path, buf, 0o600), test.ShouldBeNil)
	return path
}

func TestRunServer(t *testing.T) {
	for _, storeDisabled := range []bool{false, true} {
		t.Run(fmt.Sprintf("store disabled %v", storeDisabled), func(t *testing.T) {
			logger := logging.NewTestLogger(t)
			cfgPath := writeConfig(t, storeDisabled)
			port, err := goutils.TryReserveRandomPort()
			test.That(t, err, test.ShouldBeNil)

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() {
				done <- RunServer(ctx, []string{"sphereloc-server", "-port", strconv.Itoa(port), cfgPath}, logger)
			}()

			url := fmt.Sprintf("http://127.0.0.1:%d/api/localize", port)
			testutils.WaitForAssertion(t, func(tb testing.TB) {
				tb.Helper()
				resp, err := http.Post(url, "application/json", strings.NewReader(`{"centerX": 1500, "centerY": 1900, "diameter": 300}`))
				test.That(tb, err, test.ShouldBeNil)
				defer resp.Body.Close()
				test.That(tb, resp.StatusCode, test.ShouldEqual, http.StatusOK)
				var body map[string]interface{}
				test.That(tb, json.NewDecoder(resp.Body).Decode(&body), test.ShouldBeNil)
				test.That(tb, body["point"].(map[string]interface{})["z"], test.ShouldAlmostEqual, 64.6, 1e-9)
				_, recorded := body["id"]
				test.That(tb, recorded, test.ShouldEqual, !storeDisabled)
			})

			cancel()
			test.That(t, <-done, test.ShouldBeNil)

			logged, err := os.ReadFile(filepath.Join(filepath.Dir(cfgPath), "sphereloc.log"))
			test.That(t, err, test.ShouldBeNil)
			test.That(t, string(logged), test.ShouldContainSubstring, "calibration loaded")
		})
	}
}

func TestRunServerErrors(t *testing.T) {
	logger := logging.NewTestLogger(t)

	err := RunServer(context.Background(), []string{"sphereloc-server"}, logger)
	test.That(t, err, test.ShouldNotBeNil)

	err = RunServer(context.Background(), []string{"sphereloc-server", filepath.Join(t.TempDir(), "missing.json")}, logger)
	test.That(t, err, test.ShouldNotBeNil)

	cfgPath := writeConfig(t, true)
	test.That(t, os.Remove(filepath.Join(filepath.Dir(cfgPath), "camera.json")), test.ShouldBeNil)
	err = RunServer(context.Background(), []string{"sphereloc-server", cfgPath}, logger)
	test.That(t, err, test.ShouldNotBeNil)
}
