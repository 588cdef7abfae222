package publisher

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/quantrail/internal/domain"
	"github.com/alejandrodnm/quantrail/internal/ports"
)

type fakeStream struct {
	packets []fakePacket
}

type fakePacket struct {
	resultID, packetType string
	data                 []byte
}

func (f *fakeStream) Append(_ context.Context, resultID, packetType string, data []byte) (string, error) {
	f.packets = append(f.packets, fakePacket{resultID, packetType, data})
	return resultID, nil
}
func (f *fakeStream) Read(context.Context, string, string) ([]ports.StreamEntry, error) {
	return nil, nil
}
func (f *fakeStream) Trim(context.Context, string, string) error { return nil }

// fakeSnapshot is a mutable Snapshot a test can grow between calls.
type fakeSnapshot struct {
	scalars map[string]any
	trades  []domain.Trade
	orders  []domain.Order
	deals   []domain.Deal
}

func (s *fakeSnapshot) Scalars() map[string]any { return s.scalars }
func (s *fakeSnapshot) Trades() []domain.Trade  { return s.trades }
func (s *fakeSnapshot) Orders() []domain.Order  { return s.orders }
func (s *fakeSnapshot) Deals() []domain.Deal    { return s.deals }

func TestPublisherResetEmitsStart(t *testing.T) {
	stream := &fakeStream{}
	snap := &fakeSnapshot{trades: []domain.Trade{{TradeID: 1}}}
	p := New(stream, "result-1", snap, nil)

	require.NoError(t, p.Reset(context.Background()))
	require.Len(t, stream.packets, 1)
	assert.Equal(t, "START", stream.packets[0].packetType)
	assert.Equal(t, 1, p.tradeSize)
}

func TestPublisherSendChangesSendsOnlyTail(t *testing.T) {
	stream := &fakeStream{}
	snap := &fakeSnapshot{trades: []domain.Trade{{TradeID: 1}}}
	p := New(stream, "result-1", snap, nil)
	require.NoError(t, p.Reset(context.Background()))

	snap.trades = append(snap.trades, domain.Trade{TradeID: 2}, domain.Trade{TradeID: 3})
	require.NoError(t, p.SendChanges(context.Background()))

	require.Len(t, stream.packets, 2)
	var pkt dataPacket
	require.NoError(t, json.Unmarshal(stream.packets[1].data, &pkt))
	require.Len(t, pkt.Trades, 2)
	assert.Equal(t, int64(2), pkt.Trades[0].TradeID)
	assert.Equal(t, int64(3), pkt.Trades[1].TradeID)
}

func TestPublisherSendChangesSkipsEmptyData(t *testing.T) {
	stream := &fakeStream{}
	snap := &fakeSnapshot{}
	p := New(stream, "result-1", snap, nil)
	require.NoError(t, p.Reset(context.Background()))

	require.NoError(t, p.SendChanges(context.Background()))
	assert.Len(t, stream.packets, 1) // only START, no DATA
}

func TestPublisherSendChangesAcceptsShrinkWithoutSendingList(t *testing.T) {
	stream := &fakeStream{}
	snap := &fakeSnapshot{trades: []domain.Trade{{TradeID: 1}, {TradeID: 2}}}
	p := New(stream, "result-1", snap, nil)
	require.NoError(t, p.Reset(context.Background()))

	snap.scalars = map[string]any{"equity_usd": 100.0}
	snap.trades = snap.trades[:1]
	require.NoError(t, p.SendChanges(context.Background()))

	require.Len(t, stream.packets, 2)
	var pkt dataPacket
	require.NoError(t, json.Unmarshal(stream.packets[1].data, &pkt))
	assert.Empty(t, pkt.Trades)
	assert.Equal(t, 1, p.tradeSize)
}

func TestPublisherFinishEmitsEndWithIsFinish(t *testing.T) {
	stream := &fakeStream{}
	snap := &fakeSnapshot{}
	p := New(stream, "result-1", snap, nil)
	require.NoError(t, p.Reset(context.Background()))
	require.NoError(t, p.Finish(context.Background()))

	require.Len(t, stream.packets, 2)
	assert.Equal(t, "END", stream.packets[1].packetType)
	var pkt dataPacket
	require.NoError(t, json.Unmarshal(stream.packets[1].data, &pkt))
	assert.True(t, pkt.IsFinish)
}

func TestPublisherSendErrorPacketSwallowsMarshalFailure(t *testing.T) {
	stream := &fakeStream{}
	snap := &fakeSnapshot{}
	p := New(stream, "result-1", snap, nil)
	assert.NotPanics(t, func() {
		p.SendErrorPacket(context.Background(), "boom", map[string]any{"bad": make(chan int)})
	})
}
