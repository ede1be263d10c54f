package civicrm

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/kevin07696/tsys-connector/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dueSeriesBody = `{"is_error":0,"count":3,"values":[
	{"id":"12","contact_id":"8","payment_processor_id":"3","financial_type_id":"1","payment_instrument_id":"1",
	 "campaign_id":"","amount":"25.00","currency":"USD","frequency_unit":"month","frequency_interval":"1",
	 "next_sched_contribution_date":"2026-10-01 00:00:00","installments":"12","is_test":"0"},
	{"id":"13","contact_id":"9","payment_processor_id":"3","amount":"10","currency":"USD",
	 "frequency_unit":"week","frequency_interval":"2","next_sched_contribution_date":"2026-10-02"},
	{"id":"14","next_sched_contribution_date":"soon"}
]}`

func TestListDueRecurringSeries_LooksUpProcessors(t *testing.T) {
	host := newFakeHost()
	host.on("PaymentProcessor.get", http.StatusOK, `{"is_error":0,"count":2,"values":[{"id":"3"},{"id":"4"}]}`)
	host.on("ContributionRecur.get", http.StatusOK, dueSeriesBody)
	client := newTestClient(t, host, nil)

	asOf := time.Date(2026, 10, 2, 6, 0, 0, 0, time.UTC)
	series, err := client.ListDueRecurringSeries(context.Background(), asOf, 50)
	require.NoError(t, err)
	require.Len(t, series, 2, "unparsable rows are skipped")

	first := series[0]
	assert.Equal(t, int64(12), first.ID)
	assert.Equal(t, int64(8), first.ContactID)
	assert.Equal(t, "25", first.Amount.String())
	assert.Equal(t, models.FrequencyMonth, first.FrequencyUnit)
	assert.Nil(t, first.CampaignID)
	require.NotNil(t, first.InstallmentsLeft)
	assert.Equal(t, 12, *first.InstallmentsLeft)
	assert.True(t, first.NextScheduledDate.Equal(time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)))

	assert.Equal(t, models.FrequencyWeek, series[1].FrequencyUnit)
	assert.Equal(t, 2, series[1].FrequencyInterval)

	processorQuery := host.callsTo("PaymentProcessor.get")[0].Params
	assert.Equal(t, DefaultProcessorClassName, processorQuery["class_name"])

	params := host.callsTo("ContributionRecur.get")[0].Params
	in := params["payment_processor_id"].(map[string]any)["IN"].([]any)
	assert.Equal(t, []any{json.Number("3"), json.Number("4")}, in)
	due := params["next_sched_contribution_date"].(map[string]any)["<="]
	assert.Equal(t, "2026-10-02 23:59:59", due)
	assert.Equal(t, json.Number("50"), params["options"].(map[string]any)["limit"])
}

func TestListDueRecurringSeries_ConfiguredProcessors(t *testing.T) {
	host := newFakeHost()
	host.on("ContributionRecur.get", http.StatusOK, `{"is_error":0,"count":0,"values":[]}`)
	client := newTestClient(t, host, nil)
	client.config.ProcessorIDs = []int64{7}

	series, err := client.ListDueRecurringSeries(context.Background(), time.Now(), 0)
	require.NoError(t, err)
	assert.Empty(t, series)
	assert.Empty(t, host.callsTo("PaymentProcessor.get"))
}

func TestListDueRecurringSeries_NoProcessors(t *testing.T) {
	host := newFakeHost()
	host.on("PaymentProcessor.get", http.StatusOK, `{"is_error":0,"count":0,"values":[]}`)
	client := newTestClient(t, host, nil)

	series, err := client.ListDueRecurringSeries(context.Background(), time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, series)
	assert.Empty(t, host.callsTo("ContributionRecur.get"))
}

func TestAdvanceRecurringSchedule(t *testing.T) {
	host := newFakeHost()
	host.on("ContributionRecur.create", http.StatusOK, `{"is_error":0,"id":"12"}`)
	client := newTestClient(t, host, nil)

	err := client.AdvanceRecurringSchedule(context.Background(), 12, time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	params := host.callsTo("ContributionRecur.create")[0].Params
	assert.Equal(t, json.Number("12"), params["id"])
	assert.Equal(t, "2026-11-01 00:00:00", params["next_sched_contribution_date"])
}
