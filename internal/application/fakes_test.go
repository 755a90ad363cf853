package app

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"

	"thermal-vision/internal/domain/entity"
	"thermal-vision/internal/domain/port"
	"thermal-vision/internal/logger"
)

var testLog = logger.New(io.Discard)

type fakeSessionSource struct {
	mu        sync.Mutex
	session   *entity.Session
	listeners map[int]port.SessionListener
	next      int

	// beforeCurrent вызывается в начале Current вне блокировки.
	beforeCurrent func()
}

func newFakeSessionSource(session *entity.Session) *fakeSessionSource {
	return &fakeSessionSource{session: session, listeners: make(map[int]port.SessionListener)}
}

func (f *fakeSessionSource) Current(ctx context.Context) (*entity.Session, error) {
	if f.beforeCurrent != nil {
		f.beforeCurrent()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session, nil
}

func (f *fakeSessionSource) Subscribe(listener port.SessionListener) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	f.listeners[id] = listener
	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

// Set меняет сессию и оповещает подписчиков.
func (f *fakeSessionSource) Set(session *entity.Session) {
	f.mu.Lock()
	f.session = session
	listeners := make([]port.SessionListener, 0, len(f.listeners))
	for _, l := range f.listeners {
		listeners = append(listeners, l)
	}
	f.mu.Unlock()

	for _, l := range listeners {
		l(session)
	}
}

func (f *fakeSessionSource) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

type fakeRedirector struct {
	mu    sync.Mutex
	count int
}

func (r *fakeRedirector) RedirectToSignIn() {
	r.mu.Lock()
	r.count++
	r.mu.Unlock()
}

func (r *fakeRedirector) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []entity.Event
}

func (n *fakeNotifier) Notify(event entity.Event) {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
}

func (n *fakeNotifier) Notices() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, e := range n.events {
		if e.Kind == entity.EventNotice {
			out = append(out, e.Message)
		}
	}
	return out
}

func (n *fakeNotifier) Kinds() []entity.EventKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]entity.EventKind, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Kind)
	}
	return out
}

// fakeEndpoint считает вызовы; при заданном release ждёт сигнала перед ответом.
type fakeEndpoint struct {
	mu      sync.Mutex
	calls   int
	last    entity.UploadPayload
	result  *entity.DetectionResult
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeEndpoint) Detect(ctx context.Context, payload entity.UploadPayload) (*entity.DetectionResult, error) {
	f.mu.Lock()
	f.calls++
	f.last = payload
	started, release := f.started, f.release
	result, err := f.result, f.err
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		<-release
	}
	return result, err
}

func (f *fakeEndpoint) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeEndpoint) Respond(result *entity.DetectionResult, err error) {
	f.mu.Lock()
	f.result, f.err = result, err
	f.mu.Unlock()
}

// fakePreviewer блокирует предпросмотр байтов из blocked до сигнала.
type fakePreviewer struct {
	mu      sync.Mutex
	blocked map[string]chan struct{}
	entered chan string
	err     error
}

func (p *fakePreviewer) Preview(ctx context.Context, data []byte) (string, error) {
	p.mu.Lock()
	wait := p.blocked[string(data)]
	entered, err := p.entered, p.err
	p.mu.Unlock()

	if entered != nil {
		entered <- string(data)
	}
	if wait != nil {
		<-wait
	}
	if err != nil {
		return "", err
	}
	return "data:preview," + string(data), nil
}

type fakeFile struct {
	name        string
	contentType string
	data        string
}

func (f fakeFile) Name() string        { return f.name }
func (f fakeFile) ContentType() string { return f.contentType }
func (f fakeFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader([]byte(f.data))), nil
}

func pngFile(data string) fakeFile {
	return fakeFile{name: "thermal-" + strings.ReplaceAll(data, " ", "_") + ".png", contentType: "image/png", data: data}
}

func twoDetections() *entity.DetectionResult {
	res, err := entity.NewDetectionResult([]entity.Detection{
		{Label: "Person", Confidence: 0.91, BBox: entity.BBox{X: 10, Y: 12, Width: 20, Height: 40}, TemperatureLabel: "hot"},
		{Label: "Dog", Confidence: 0.42, BBox: entity.BBox{X: 60, Y: 55, Width: 15, Height: 10}, TemperatureLabel: "warm"},
	}, "img2", "img1")
	if err != nil {
		panic(err)
	}
	return res
}
