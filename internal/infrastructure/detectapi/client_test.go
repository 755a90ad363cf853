package detectapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"thermal-vision/internal/domain/entity"
	"thermal-vision/internal/logger"
)

var testLog = logger.New(io.Discard)

func payload() entity.UploadPayload {
	return entity.UploadPayload{
		Filename:    "frame.png",
		ContentType: "image/png",
		Data:        []byte("\x89PNG\r\n\x1a\nthermal"),
	}
}

func newServer(t *testing.T, status int, body string) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestClient_SendsMultipartImage(t *testing.T) {
	var gotMethod, gotType, gotName string
	var gotData []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		file, header, err := r.FormFile(FieldImage)
		require.NoError(t, err)
		defer file.Close()
		gotData, _ = io.ReadAll(file)
		gotType = header.Header.Get("Content-Type")
		gotName = header.Filename

		json.NewEncoder(w).Encode(map[string]any{
			"success":         true,
			"detections":      []any{},
			"detection_count": 0,
			"output_image":    "data:image/png;base64,AAAA",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/detect", 5*time.Second, testLog)
	res, err := c.Detect(context.Background(), payload())
	require.NoError(t, err)
	require.Equal(t, 0, res.Count)

	require.Equal(t, http.MethodPost, gotMethod)
	require.Equal(t, "image/png", gotType)
	require.Equal(t, "frame.png", gotName)
	require.Equal(t, payload().Data, gotData)
}

func TestClient_ScenarioA_TwoDetections(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{
		"success": true,
		"detections": [
			{"label": "Person", "confidence": 0.91, "bbox": {"x": 10, "y": 12.5, "width": 20, "height": 40}, "temperature": "hot"},
			{"label": "Dog", "confidence": 0.42, "bbox": {"x": 60, "y": 55, "width": 15, "height": 10}}
		],
		"detection_count": 2,
		"output_image": "img2",
		"input_image": "img1",
		"model_mode": "yolo"
	}`)

	res, err := NewClient(srv.URL+"/detect", 0, testLog).Detect(context.Background(), payload())
	require.NoError(t, err)
	require.Equal(t, 2, res.Count)
	require.Equal(t, "img2", res.OutputImageURI)
	require.Equal(t, "img1", res.InputImageURI)
	require.Equal(t, "Person", res.Detections[0].Label)
	require.Equal(t, 12.5, res.Detections[0].BBox.Y)
	require.Equal(t, "hot", res.Detections[0].TemperatureLabel)
	require.Equal(t, "warm", res.Detections[1].TemperatureLabel)
}

func TestClient_ScenarioC_ErrorStatusWithMessage(t *testing.T) {
	srv, _ := newServer(t, http.StatusInternalServerError, `{"error": "model unavailable"}`)

	_, err := NewClient(srv.URL+"/detect", 0, testLog).Detect(context.Background(), payload())

	var dse *entity.DetectionServiceError
	require.True(t, errors.As(err, &dse))
	require.Equal(t, "model unavailable", dse.Message)
}

func TestClient_ErrorStatusWithoutMessage(t *testing.T) {
	srv, _ := newServer(t, http.StatusBadGateway, `<html>bad gateway</html>`)

	_, err := NewClient(srv.URL+"/detect", 0, testLog).Detect(context.Background(), payload())
	require.Error(t, err)

	var dse *entity.DetectionServiceError
	require.False(t, errors.As(err, &dse))
	require.Contains(t, err.Error(), "502")
}

func TestClient_SuccessFalse(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"success": false, "error": "X"}`)

	_, err := NewClient(srv.URL+"/detect", 0, testLog).Detect(context.Background(), payload())

	var dse *entity.DetectionServiceError
	require.True(t, errors.As(err, &dse))
	require.Equal(t, "X", dse.Message)
}

func TestClient_SuccessFalseWithoutMessage(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"success": false}`)

	_, err := NewClient(srv.URL+"/detect", 0, testLog).Detect(context.Background(), payload())

	var dse *entity.DetectionServiceError
	require.True(t, errors.As(err, &dse))
	require.Equal(t, msgDetectionFailed, dse.Message)
}

func TestClient_MalformedResponses(t *testing.T) {
	cases := map[string]string{
		"not json":          `ok`,
		"missing success":   `{"detections": [], "output_image": "x"}`,
		"missing output":    `{"success": true, "detections": []}`,
		"missing list":      `{"success": true, "output_image": "x"}`,
		"wrong type":        `{"success": "yes", "detections": [], "output_image": "x"}`,
		"count mismatch":    `{"success": true, "detections": [], "detection_count": 3, "output_image": "x"}`,
		"missing bbox":      `{"success": true, "detections": [{"label": "a", "confidence": 0.5}], "output_image": "x"}`,
		"partial bbox":      `{"success": true, "detections": [{"label": "a", "confidence": 0.5, "bbox": {"x": 1}}], "output_image": "x"}`,
		"confidence range":  `{"success": true, "detections": [{"label": "a", "confidence": 1.5, "bbox": {"x": 1, "y": 1, "width": 1, "height": 1}}], "output_image": "x"}`,
		"bbox out of range": `{"success": true, "detections": [{"label": "a", "confidence": 0.5, "bbox": {"x": 1, "y": 1, "width": 120, "height": 1}}], "output_image": "x"}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv, _ := newServer(t, http.StatusOK, body)
			_, err := NewClient(srv.URL+"/detect", 0, testLog).Detect(context.Background(), payload())
			require.ErrorIs(t, err, entity.ErrMalformedResponse)
		})
	}
}

func TestClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url+"/detect", time.Second, testLog).Detect(context.Background(), payload())
	require.Error(t, err)
	require.NotErrorIs(t, err, entity.ErrMalformedResponse)
}

func TestClient_Health(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		io.WriteString(w, `{"status": "ok", "model_loaded": true, "model_mode": "blob"}`)
	}))
	defer srv.Close()

	status, err := NewClient(srv.URL+"/detect", time.Second, testLog).Health(context.Background())
	require.NoError(t, err)
	require.Equal(t, "/health", gotPath)
	require.True(t, status.ModelLoaded)
	require.Equal(t, "blob", status.ModelMode)
}

func TestSiblingURL(t *testing.T) {
	u, err := siblingURL("http://localhost:5000/api/detect?x=1", "health")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:5000/api/health", u)

	u, err = siblingURL("http://localhost:5000", "health")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:5000/health", u)
}
