package core

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitcoin-gains/internal/model"
)

type recordingConfirmer struct {
	answer bool
	asked  int
}

func (r *recordingConfirmer) Confirm(model.Transaction, model.Transaction, []model.Transaction) (bool, error) {
	r.asked++
	return r.answer, nil
}

func ids(txs []model.Transaction) []string {
	out := make([]string, len(txs))
	for i, t := range txs {
		out[i] = t.ID
	}
	return out
}

func TestTransferInsideWindowRemovesBoth(t *testing.T) {
	base := day(0)
	txs := []model.Transaction{
		trade(base.Add(-time.Hour), "buy", "1", "-100"),
		transfer(base, model.TypeWithdraw, "w", "-0.5"),
		transfer(base.Add(23*time.Hour), model.TypeDeposit, "d", "0.5"),
	}
	res, err := NewTransferMatcher(24*time.Hour, nil).Match(txs)
	require.NoError(t, err)

	assert.Equal(t, []string{"buy"}, ids(res.Kept))
	require.Len(t, res.Pairs, 1)
	assert.Equal(t, "w", res.Pairs[0].Withdrawal.ID)
	assert.Equal(t, "d", res.Pairs[0].Deposit.ID)
	assert.Empty(t, res.Advisories)
	assert.Empty(t, res.Unclaimed)
}

func TestTransferOutsideWindowKeepsBoth(t *testing.T) {
	base := day(0)
	txs := []model.Transaction{
		transfer(base.Add(24*time.Hour), model.TypeDeposit, "d", "0.5"),
		transfer(base, model.TypeWithdraw, "w", "-0.5"),
	}
	res, err := NewTransferMatcher(24*time.Hour, nil).Match(txs)
	require.NoError(t, err)

	assert.Equal(t, []string{"d", "w"}, ids(res.Kept), "input order is preserved")
	assert.Empty(t, res.Pairs)
	require.Len(t, res.Advisories, 1)
	assert.Equal(t, "w", res.Advisories[0].Withdrawal.ID)
	assert.Equal(t, []string{"d"}, ids(res.Unclaimed))
}

func TestTransferRequiresExactAmount(t *testing.T) {
	txs := []model.Transaction{
		transfer(day(0), model.TypeWithdraw, "w", "-0.5"),
		transfer(day(0), model.TypeDeposit, "d", "0.49990000"),
	}
	res, err := NewTransferMatcher(24*time.Hour, nil).Match(txs)
	require.NoError(t, err)
	assert.Len(t, res.Kept, 2)
	assert.Empty(t, res.Advisories)
}

func TestTransferDepositIsClaimedOnce(t *testing.T) {
	base := day(0)
	txs := []model.Transaction{
		transfer(base, model.TypeWithdraw, "w1", "-1"),
		transfer(base.Add(time.Hour), model.TypeWithdraw, "w2", "-1"),
		transfer(base.Add(2*time.Hour), model.TypeDeposit, "d", "1"),
	}
	res, err := NewTransferMatcher(24*time.Hour, nil).Match(txs)
	require.NoError(t, err)
	require.Len(t, res.Pairs, 1)
	assert.Equal(t, "w1", res.Pairs[0].Withdrawal.ID)
	assert.Equal(t, []string{"w2"}, ids(res.Kept))
}

func TestTransferAmbiguousAsksConfirmer(t *testing.T) {
	base := day(0)
	txs := []model.Transaction{
		transfer(base, model.TypeWithdraw, "w", "-1"),
		transfer(base.Add(time.Hour), model.TypeDeposit, "d1", "1"),
		transfer(base.Add(2*time.Hour), model.TypeDeposit, "d2", "1"),
	}

	yes := &recordingConfirmer{answer: true}
	res, err := NewTransferMatcher(24*time.Hour, yes).Match(txs)
	require.NoError(t, err)
	assert.Equal(t, 1, yes.asked)
	assert.Equal(t, "d1", res.Pairs[0].Deposit.ID)
	assert.Equal(t, []string{"d2"}, ids(res.Kept))

	no := &recordingConfirmer{answer: false}
	res, err = NewTransferMatcher(24*time.Hour, no).Match(txs)
	require.NoError(t, err)
	assert.Empty(t, res.Pairs)
	assert.Len(t, res.Kept, 3)
	require.Len(t, res.Advisories, 1)
	assert.Contains(t, res.Advisories[0].Reason, "declined")
}

func TestPromptConfirmer(t *testing.T) {
	w := transfer(day(0), model.TypeWithdraw, "w", "-1")
	d := transfer(day(0), model.TypeDeposit, "d", "1")

	var out bytes.Buffer
	ok, err := NewPromptConfirmer(strings.NewReader("Y\n"), &out).Confirm(w, d, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, out.String(), "[y/n]")

	ok, err = NewPromptConfirmer(strings.NewReader(""), &out).Confirm(w, d, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}
