package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitcoin-gains/internal/model"
)

type sumMerge struct{ calls [][]model.Transaction }

func (s *sumMerge) MergeGroup(group []model.Transaction) ([]model.Transaction, error) {
	s.calls = append(s.calls, group)
	out := group[0]
	for _, g := range group[1:] {
		out.BTC = out.BTC.Add(g.BTC)
	}
	return []model.Transaction{out}, nil
}

func TestMergeGroupsBySourceAndID(t *testing.T) {
	a1 := trade(day(0), "x", "1", "0")
	a2 := trade(day(0), "x", "2", "0")
	b := trade(day(1), "y", "5", "0")
	other := trade(day(2), "x", "7", "0")
	other.Source = "other"

	merger := &sumMerge{}
	out, err := Merge([]model.Transaction{b, a1, other, a2}, func(string) (MergeSource, bool) { return merger, true })
	require.NoError(t, err)

	require.Len(t, out, 3)
	assert.Equal(t, []string{"y", "x", "x"}, ids(out), "first-seen order")
	assertDec(t, "3", out[1].BTC)
	assertDec(t, "7", out[2].BTC, "same id from another source is a separate group")
}

func TestMergeUnknownSource(t *testing.T) {
	_, err := Merge([]model.Transaction{trade(day(0), "x", "1", "0")}, func(string) (MergeSource, bool) { return nil, false })
	assert.Error(t, err)
}

type failingMerge struct{}

func (failingMerge) MergeGroup(group []model.Transaction) ([]model.Transaction, error) {
	return nil, &model.MergeError{Source: group[0].Source, ID: group[0].ID, Group: group, Err: errors.New("conflict")}
}

func TestMergePropagatesFailure(t *testing.T) {
	_, err := Merge([]model.Transaction{trade(day(0), "x", "1", "0")}, func(string) (MergeSource, bool) { return failingMerge{}, true })
	var me *model.MergeError
	assert.True(t, errors.As(err, &me))
}
