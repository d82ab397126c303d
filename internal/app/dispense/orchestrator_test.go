package dispense

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghalamif/PourFlow/internal/domain"
)

var martiniCatalog = staticCatalog{
	{Name: "DRY MARTINI", Steps: []domain.Step{{Volume: 60, Ingredient: "Gin"}, {Volume: 10, Ingredient: "Dry Vermouth"}}},
	{Name: "VESPER", Steps: []domain.Step{{Volume: 60, Ingredient: "Gin"}, {Volume: 15, Ingredient: "Vodka"}}, Note: "Add a dash of Lillet Blonde/Blanc"},
}

type harness struct {
	orch *Orchestrator
	drv  *recordingDriver
	ann  *recordingAnnouncer
	rec  *recordingRecorder
}

func newHarness(t *testing.T, rates []float64, binding []string, cat staticCatalog) *harness {
	t.Helper()
	reg, err := domain.NewRegistry(rates)
	require.NoError(t, err)
	b, err := domain.PadBinding(binding)
	require.NoError(t, err)

	h := &harness{
		drv: newRecordingDriver(),
		ann: &recordingAnnouncer{},
		rec: newRecordingRecorder(),
	}
	h.orch, err = NewOrchestrator(Deps{
		Registry:  reg,
		Binding:   b,
		Catalog:   cat,
		Driver:    h.drv,
		Announcer: h.ann,
		Recorder:  h.rec,
		Timing:    Timing{PollInterval: testPoll},
	})
	require.NoError(t, err)
	return h
}

func waitHandle(t *testing.T, h *Handle) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := h.Wait(ctx)
	require.NoError(t, err, "dispense did not finish")
	return res
}

func TestMixMissingIngredientOpensNothing(t *testing.T) {
	h := newHarness(t, uniformRates(1), []string{"Gin", "", "", "", "", "", "", ""}, staticCatalog{martiniCatalog[0]})

	handle, err := h.orch.Mix("DRY MARTINI", 1)
	require.Nil(t, handle)

	var missing *domain.MissingIngredientError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "Dry Vermouth", missing.Ingredient)
	assert.Equal(t, "DRY MARTINI", missing.Recipe)

	assert.Equal(t, 0, h.drv.opens())
	assert.Empty(t, h.ann.all())
}

func TestMixUnknownRecipe(t *testing.T) {
	h := newHarness(t, uniformRates(1), []string{"Gin"}, martiniCatalog)

	_, err := h.orch.Mix("dry martini", 1)
	var unknown *domain.UnknownRecipeError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "dry martini", unknown.Name)
	assert.Equal(t, 0, h.drv.opens())
}

func TestPlanScalesVolumesIntoDurations(t *testing.T) {
	rates := uniformRates(1)
	rates[2] = 1.0
	rates[5] = 2.0
	cat := staticCatalog{{
		Name:  "HOUSE",
		Steps: []domain.Step{{Volume: 30, Ingredient: "Rum"}, {Volume: 15, Ingredient: "Lime Juice"}},
	}}
	h := newHarness(t, rates, []string{"", "", "Rum", "", "", "Lime Juice"}, cat)

	_, planned, err := h.orch.Plan("HOUSE", 2.0)
	require.NoError(t, err)
	require.Len(t, planned, 2)

	assert.Equal(t, 2, planned[0].Channel)
	assert.Equal(t, 60.0, planned[0].Volume)
	assert.Equal(t, 60*time.Second, planned[0].Duration)

	assert.Equal(t, 5, planned[1].Channel)
	assert.Equal(t, 30.0, planned[1].Volume)
	assert.Equal(t, 15*time.Second, planned[1].Duration)

	assert.Equal(t, 0, h.drv.opens(), "planning must not touch hardware")
}

func TestPlanRejectsNonPositiveScale(t *testing.T) {
	h := newHarness(t, uniformRates(1), []string{"Gin", "Dry Vermouth"}, martiniCatalog)
	_, _, err := h.orch.Plan("DRY MARTINI", 0)
	require.Error(t, err)
}

func TestMixCompletesAndAnnouncesReady(t *testing.T) {
	h := newHarness(t, uniformRates(1000), []string{"Dry Vermouth", "", "Gin"}, martiniCatalog)

	handle, err := h.orch.Mix("DRY MARTINI", 1)
	require.NoError(t, err)
	assert.Equal(t, domain.KindMix, handle.Kind)
	assert.Len(t, handle.Targets, 2)

	res := waitHandle(t, handle)
	assert.Equal(t, domain.Completed, res.Outcome)
	assert.NoError(t, res.Err())

	assert.Equal(t, []string{"DRY MARTINI, 60 ml Gin, 10 ml Dry Vermouth.", ReadyMessage}, h.ann.all())
	assert.Equal(t, 2, h.drv.opens())
	for idx, flowing := range h.drv.lastLevels() {
		assert.False(t, flowing, "channel %d left open", idx)
	}
}

func TestMixAnnouncesNote(t *testing.T) {
	h := newHarness(t, uniformRates(1000), []string{"Gin", "Vodka"}, martiniCatalog)

	handle, err := h.orch.Mix("VESPER", 0.5)
	require.NoError(t, err)
	waitHandle(t, handle)

	lines := h.ann.all()
	require.Len(t, lines, 2)
	assert.Equal(t, "VESPER, 30 ml Gin, 7.5 ml Vodka.", lines[0])
	assert.Equal(t, "Add a dash of Lillet Blonde/Blanc", lines[1])
}

func TestStopAllDuringMixSuppressesCompletion(t *testing.T) {
	h := newHarness(t, uniformRates(1), []string{"Gin", "Dry Vermouth"}, martiniCatalog)

	handle, err := h.orch.Mix("DRY MARTINI", 1)
	require.NoError(t, err)
	time.Sleep(3 * testPoll)

	stoppedAt := time.Now()
	require.NoError(t, h.orch.StopAll())

	res := waitHandle(t, handle)
	assert.Less(t, time.Since(stoppedAt), testPoll+50*time.Millisecond)
	assert.Equal(t, domain.Superseded, res.Outcome)

	assert.Equal(t, []string{"DRY MARTINI, 60 ml Gin, 10 ml Dry Vermouth."}, h.ann.all())
	for idx, flowing := range h.drv.lastLevels() {
		assert.False(t, flowing, "channel %d left open", idx)
	}
}

func TestNewMixSupersedesRunningOne(t *testing.T) {
	rates := uniformRates(1000)
	rates[0] = 1 // Gin pours slowly
	h := newHarness(t, rates, []string{"Gin", "Dry Vermouth", "Vodka"}, martiniCatalog)

	first, err := h.orch.Mix("DRY MARTINI", 1)
	require.NoError(t, err)
	time.Sleep(2 * testPoll)

	second, err := h.orch.Pour("Vodka", 20)
	require.NoError(t, err)
	assert.Greater(t, second.Epoch, first.Epoch)

	assert.Equal(t, domain.Superseded, waitHandle(t, first).Outcome)
	assert.Equal(t, domain.Completed, waitHandle(t, second).Outcome)

	ready := 0
	for _, line := range h.ann.all() {
		if line == ReadyMessage {
			ready++
		}
	}
	assert.Equal(t, 1, ready, "only the superseding pour announces completion")
}

func TestPourUnknownIngredient(t *testing.T) {
	h := newHarness(t, uniformRates(1), []string{"Gin"}, martiniCatalog)

	_, err := h.orch.Pour("Tequila", DefaultPourAmount)
	var unknown *domain.UnknownIngredientError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "Tequila", unknown.Name)
	assert.Equal(t, 0, h.drv.opens())
}

func TestPourSingleChannel(t *testing.T) {
	h := newHarness(t, uniformRates(1000), []string{"", "", "", "Gin"}, martiniCatalog)

	handle, err := h.orch.Pour("Gin", DefaultPourAmount)
	require.NoError(t, err)
	require.Equal(t, []domain.Target{{Channel: 3, Ingredient: "Gin", Volume: 10}}, handle.Targets)

	res := waitHandle(t, handle)
	assert.Equal(t, domain.Completed, res.Outcome)
	assert.Equal(t, []string{"10 ml Gin", ReadyMessage}, h.ann.all())
	assert.Len(t, h.drv.onChannel(3), 2+1, "stop close, open, close")
}

func TestHardwareFaultIsIsolatedToOneChannel(t *testing.T) {
	h := newHarness(t, uniformRates(1000), []string{"Gin", "Dry Vermouth"}, martiniCatalog)
	h.drv.failOpen[1] = errors.New("relay driver offline")

	handle, err := h.orch.Mix("DRY MARTINI", 1)
	require.NoError(t, err)
	res := waitHandle(t, handle)

	assert.Equal(t, domain.Completed, res.Outcome)
	require.Len(t, res.Faults, 1)
	var hw *domain.HardwareFaultError
	require.True(t, errors.As(res.Faults[0], &hw))
	assert.Equal(t, 1, hw.Channel)

	span, ok := h.drv.openSpan(0)
	require.True(t, ok, "sibling channel still pours")
	assert.GreaterOrEqual(t, span, 60*time.Millisecond)
	assert.False(t, h.drv.lastLevels()[1])

	lines := h.ann.all()
	assert.Equal(t, "Problem pouring DRY MARTINI: channel 1 failed", lines[len(lines)-1])
}

func TestRecorderReceivesOneRecordPerChannel(t *testing.T) {
	h := newHarness(t, uniformRates(1000), []string{"Gin", "Dry Vermouth"}, martiniCatalog)

	handle, err := h.orch.Mix("DRY MARTINI", 2)
	require.NoError(t, err)
	waitHandle(t, handle)

	for i := 0; i < 2; i++ {
		select {
		case <-h.rec.got:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for journal records")
		}
	}

	h.rec.mu.Lock()
	defer h.rec.mu.Unlock()
	require.Len(t, h.rec.records, 2)
	for _, r := range h.rec.records {
		assert.Equal(t, handle.ID.String(), r.DispenseID)
		assert.Equal(t, domain.KindMix, r.Kind)
		assert.Equal(t, "completed", r.Outcome)
	}
}

func TestFlushOpensEveryChannel(t *testing.T) {
	h := newHarness(t, uniformRates(1), []string{"Gin"}, martiniCatalog)

	handle, err := h.orch.Flush(30 * time.Millisecond)
	require.NoError(t, err)
	res := waitHandle(t, handle)
	assert.Equal(t, domain.Completed, res.Outcome)
	assert.Equal(t, domain.ChannelCount, h.drv.opens())
	assert.Equal(t, "Flush complete", h.ann.all()[1])

	_, err = h.orch.Flush(0)
	require.Error(t, err)
}

// hangingDriver blocks every open of one channel until release is closed.
type hangingDriver struct {
	recordingDriver
	hang    int
	release chan struct{}
}

func (d *hangingDriver) SetLevel(index int, flowing bool) error {
	_ = d.recordingDriver.SetLevel(index, flowing)
	if index == d.hang && flowing {
		<-d.release
	}
	return nil
}

func TestHungOpenDoesNotBlockStop(t *testing.T) {
	drv := &hangingDriver{hang: 1, release: make(chan struct{})}
	reg, err := domain.NewRegistry(uniformRates(1))
	require.NoError(t, err)
	b, err := domain.PadBinding([]string{"Gin", "Dry Vermouth"})
	require.NoError(t, err)
	orch, err := NewOrchestrator(Deps{
		Registry:  reg,
		Binding:   b,
		Catalog:   martiniCatalog,
		Driver:    drv,
		Announcer: &recordingAnnouncer{},
		Timing:    Timing{PollInterval: testPoll},
	})
	require.NoError(t, err)

	first, err := orch.Mix("DRY MARTINI", 1)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return drv.lastLevels()[0] && drv.lastLevels()[1] }, time.Second, time.Millisecond)

	stopped := make(chan error, 1)
	go func() { stopped <- orch.StopAll() }()
	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("StopAll blocked behind a hung open")
	}
	assert.False(t, drv.lastLevels()[0], "channel 0 must be closed by the stop")

	poured := make(chan error, 1)
	go func() {
		_, err := orch.Pour("Gin", 0.01)
		poured <- err
	}()
	select {
	case err := <-poured:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Pour blocked behind a hung open")
	}

	close(drv.release)
	assert.Equal(t, domain.Superseded, waitHandle(t, first).Outcome)
	require.NoError(t, orch.Wait(context.Background()))
	assert.False(t, drv.lastLevels()[1], "channel 1 must be closed once its open returns")
}

func TestWaitJoinsSupervisorsAndRecords(t *testing.T) {
	rates := uniformRates(1000)
	rates[0] = 1
	h := newHarness(t, rates, []string{"Gin", "Dry Vermouth"}, martiniCatalog)

	_, err := h.orch.Mix("DRY MARTINI", 1)
	require.NoError(t, err)
	time.Sleep(2 * testPoll)

	short, cancel := context.WithTimeout(context.Background(), 2*testPoll)
	defer cancel()
	assert.ErrorIs(t, h.orch.Wait(short), context.DeadlineExceeded, "the slow Gin pour is still running")

	require.NoError(t, h.orch.StopAll())
	ctx, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	require.NoError(t, h.orch.Wait(ctx))

	h.rec.mu.Lock()
	defer h.rec.mu.Unlock()
	assert.Len(t, h.rec.records, 2, "records are handed over before Wait returns")
}

func TestWaitWithNothingInFlight(t *testing.T) {
	h := newHarness(t, uniformRates(1), []string{"Gin"}, martiniCatalog)
	require.NoError(t, h.orch.Wait(context.Background()))
}
