package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	grpcsvc "github.com/vladislavdragonenkov/ims/internal/service/grpc"
)

type fakeInvoker struct {
	mu      sync.Mutex
	calls   []string
	methods map[string]func(map[string]any) (map[string]any, error)
}

func (f *fakeInvoker) Call(_ context.Context, method string, req map[string]any, _ ...grpc.CallOption) (*structpb.Struct, error) {
	f.mu.Lock()
	f.calls = append(f.calls, method)
	fn := f.methods[method]
	f.mu.Unlock()

	if fn == nil {
		return nil, status.Errorf(codes.Unimplemented, "unexpected call %s", method)
	}
	resp, err := fn(req)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(resp)
}

func okOrderFlow() *fakeInvoker {
	return &fakeInvoker{methods: map[string]func(map[string]any) (map[string]any, error){
		grpcsvc.MethodCreateOrder: func(map[string]any) (map[string]any, error) {
			return map[string]any{"id": 7, "total": "9.00"}, nil
		},
		grpcsvc.MethodProcessOrder: func(req map[string]any) (map[string]any, error) {
			if req["amount"] != "9.00" {
				return nil, status.Error(codes.FailedPrecondition, "insufficient payment")
			}
			return map[string]any{}, nil
		},
		grpcsvc.MethodCancelOrder: func(map[string]any) (map[string]any, error) {
			return map[string]any{}, nil
		},
	}}
}

func TestParseConfig(t *testing.T) {
	cfg, err := parseConfig([]string{"-mode", "create-process", "-cancel-rate", "25", "-total", "10"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, modeCreateProcess, cfg.mode)
	assert.Equal(t, 25, cfg.cancelRate)
	assert.True(t, cfg.totalSet)
	assert.Equal(t, 5*time.Second, cfg.timeout)

	cfg, err = parseConfig(nil, io.Discard)
	require.NoError(t, err)
	assert.False(t, cfg.totalSet)
	assert.Equal(t, modeCreate, cfg.mode)
}

func TestParseConfig_Invalid(t *testing.T) {
	cases := map[string][]string{
		"mode":        {"-mode", "create-pay"},
		"duration":    {"-duration", "-1s"},
		"total":       {"-total", "0"},
		"concurrency": {"-concurrency", "0"},
		"cancel rate": {"-cancel-rate", "101"},
		"stock":       {"-stock", "0"},
		"item id":     {"-item-id", "-3"},
		"flag":        {"-unknown"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseConfig(args, io.Discard)
			assert.Error(t, err)
		})
	}
}

func TestParseMode(t *testing.T) {
	mode, err := parseMode(" Create-Cancel ")
	require.NoError(t, err)
	assert.Equal(t, modeCreateCancel, mode)

	_, err = parseMode("refund")
	assert.ErrorContains(t, err, "unsupported mode")
}

func TestShouldCancel(t *testing.T) {
	process := config{mode: modeCreateProcess, cancelRate: 30}
	cancelled := 0
	for i := 0; i < 100; i++ {
		if shouldCancel(process, i) {
			cancelled++
		}
	}
	assert.Equal(t, 30, cancelled)

	assert.True(t, shouldCancel(config{mode: modeCreateCancel}, 99))
	assert.False(t, shouldCancel(config{mode: modeCreate, cancelRate: 100}, 0))
	assert.True(t, shouldCancel(config{mode: modeCreateProcess, cancelRate: 100}, 99))
	assert.False(t, shouldCancel(config{mode: modeCreateProcess}, 0))
}

func TestRunScenario_Modes(t *testing.T) {
	tests := []struct {
		mode  loadMode
		calls []string
	}{
		{modeCreate, []string{grpcsvc.MethodCreateOrder}},
		{modeCreateProcess, []string{grpcsvc.MethodCreateOrder, grpcsvc.MethodProcessOrder}},
		{modeCreateCancel, []string{grpcsvc.MethodCreateOrder, grpcsvc.MethodCancelOrder}},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			client := okOrderFlow()
			col := newCollector()

			err := runScenario(client, config{mode: tt.mode, itemID: 1, timeout: time.Second}, 0, col)
			require.NoError(t, err)
			assert.Equal(t, tt.calls, client.calls)

			result := col.buildReport(time.Now(), time.Second)
			assert.EqualValues(t, 1, result.SuccessScenarios)
			assert.Len(t, result.Methods, len(tt.calls)+1)
		})
	}
}

func TestRunScenario_CreateFailureIsRecorded(t *testing.T) {
	client := &fakeInvoker{methods: map[string]func(map[string]any) (map[string]any, error){
		grpcsvc.MethodCreateOrder: func(map[string]any) (map[string]any, error) {
			return nil, status.Error(codes.FailedPrecondition, "insufficient stock")
		},
	}}
	col := newCollector()

	err := runScenario(client, config{mode: modeCreateProcess, timeout: time.Second}, 0, col)
	require.Error(t, err)

	result := col.buildReport(time.Now(), time.Second)
	assert.EqualValues(t, 1, result.FailedScenarios)
	assert.EqualValues(t, 1, result.Methods[scenarioKey].Codes[codes.FailedPrecondition.String()])
	assert.EqualValues(t, 1, result.Methods[grpcsvc.MethodCreateOrder].Failed)
}

func TestRunScenario_MalformedCreateResponse(t *testing.T) {
	client := &fakeInvoker{methods: map[string]func(map[string]any) (map[string]any, error){
		grpcsvc.MethodCreateOrder: func(map[string]any) (map[string]any, error) {
			return map[string]any{"id": 1}, nil
		},
	}}
	err := runScenario(client, config{mode: modeCreate, timeout: time.Second}, 0, newCollector())
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestPrepare_ToleratesExistingObjects(t *testing.T) {
	exists := func(map[string]any) (map[string]any, error) {
		return nil, status.Error(codes.AlreadyExists, "exists")
	}
	client := &fakeInvoker{methods: map[string]func(map[string]any) (map[string]any, error){
		grpcsvc.MethodAddItem:               exists,
		grpcsvc.MethodRegisterPaymentMethod: exists,
	}}
	require.NoError(t, prepare(client, config{timeout: time.Second}))

	client.methods[grpcsvc.MethodAddItem] = func(map[string]any) (map[string]any, error) {
		return nil, status.Error(codes.InvalidArgument, "price must be a decimal")
	}
	assert.ErrorContains(t, prepare(client, config{timeout: time.Second}), "add load item")
}

func TestRunWorkers_CountMode(t *testing.T) {
	client := okOrderFlow()
	col := newCollector()
	cfg := config{mode: modeCreateProcess, total: 25, concurrency: 4, timeout: time.Second}

	runWorkers([]invoker{client, client}, cfg, col)

	result := col.buildReport(time.Now(), time.Second)
	assert.EqualValues(t, 25, result.TotalScenarios)
	assert.EqualValues(t, 25, result.Methods[grpcsvc.MethodProcessOrder].Success)
	assert.InDelta(t, 25, result.RPS, 0.001)
}

func TestDispatchJobs_DurationWithCap(t *testing.T) {
	jobs := make(chan int, 100)
	dispatchJobs(jobs, config{duration: time.Minute, total: 5, totalSet: true})

	var got []int
	for j := range jobs {
		got = append(got, j)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestBuildLatencySummary(t *testing.T) {
	assert.Equal(t, latencySummary{}, buildLatencySummary(nil))

	s := buildLatencySummary([]float64{4, 1, 3, 2})
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 4.0, s.Max)
	assert.Equal(t, 2.5, s.Avg)
	assert.Equal(t, 2.5, s.P50)
	assert.InDelta(t, 3.85, s.P95, 1e-9)
}

func TestRatioAndRunTarget(t *testing.T) {
	assert.Zero(t, ratio(1, 0))
	assert.Equal(t, 0.25, ratio(1, 4))

	assert.Equal(t, "count:10", runTarget(config{total: 10}))
	assert.Equal(t, "duration:1m0s", runTarget(config{duration: time.Minute}))
	assert.Equal(t, "duration:1m0s,max-total:3", runTarget(config{duration: time.Minute, total: 3, totalSet: true}))
}

func TestWriteJSONReport(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	result := report{TotalScenarios: 3, Methods: map[string]methodReport{}}
	require.NoError(t, writeJSONReport("report.json", result))

	raw, err := os.ReadFile(filepath.Join(dir, "report.json"))
	require.NoError(t, err)
	var decoded report
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.EqualValues(t, 3, decoded.TotalScenarios)

	assert.Error(t, writeJSONReport("../escape.json", result))
	assert.Error(t, writeJSONReport(".", result))
}

func TestPrintReport(t *testing.T) {
	col := newCollector()
	col.record(scenarioKey, time.Millisecond, codes.OK)
	col.record(grpcsvc.MethodCreateOrder, time.Millisecond, codes.OK)

	var out bytes.Buffer
	printReport(&out, col.buildReport(time.Now(), time.Second), config{mode: modeCreate, total: 1})

	assert.Contains(t, out.String(), "mode=create run=count:1 total=1 success=1 failed=0")
	assert.Contains(t, out.String(), "CreateOrder: calls=1 success=1")
	assert.NotContains(t, out.String(), "scenario: calls")
}
