// Package quotesproto defines the wire envelopes exchanged between the
// Quotes Client and the Quotes Service over the message bus: a compact
// binary request and a column-major binary response, both msgpack-encoded.
package quotesproto

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/alejandrodnm/quantrail/internal/domain"
)

// Request is the inbound-queue payload: {request_id, source, symbol,
// timeframe, history_start, history_end?}.
type Request struct {
	RequestID       string `msgpack:"request_id"`
	Source          string `msgpack:"source"`
	Symbol          string `msgpack:"symbol"`
	Timeframe       string `msgpack:"timeframe"`
	HistoryStartMs  int64  `msgpack:"history_start"`
	HistoryEndMs    *int64 `msgpack:"history_end"`
}

// EncodeRequest serializes r for the inbound queue.
func EncodeRequest(r Request) ([]byte, error) {
	b, err := msgpack.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("quotesproto.EncodeRequest: %w", err)
	}
	return b, nil
}

// DecodeRequest parses a payload popped off the inbound queue.
func DecodeRequest(payload []byte) (Request, error) {
	var r Request
	if err := msgpack.Unmarshal(payload, &r); err != nil {
		return Request{}, fmt.Errorf("quotesproto.DecodeRequest: %w", err)
	}
	return r, nil
}

// ResponseMeta carries the status envelope of a reply; ArraySizes mirrors
// the original service's per-column length metadata.
type ResponseMeta struct {
	RequestID  string         `msgpack:"request_id"`
	Status     string         `msgpack:"status"` // "success" | "error"
	Error      string         `msgpack:"error,omitempty"`
	ArraySizes map[string]int `msgpack:"array_sizes,omitempty"`
}

// Response is the per-request reply slot payload: metadata plus one
// contiguous column buffer per OHLCV field.
type Response struct {
	Metadata ResponseMeta `msgpack:"metadata"`
	Time     []int64      `msgpack:"time,omitempty"`
	Open     []float64    `msgpack:"open,omitempty"`
	High     []float64    `msgpack:"high,omitempty"`
	Low      []float64    `msgpack:"low,omitempty"`
	Close    []float64    `msgpack:"close,omitempty"`
	Volume   []float64    `msgpack:"volume,omitempty"`
}

// Series reassembles the response's columns into a domain.BarSeries. Only
// meaningful when Metadata.Status == "success".
func (r Response) Series() domain.BarSeries {
	return domain.BarSeries{
		Time:   r.Time,
		Open:   r.Open,
		High:   r.High,
		Low:    r.Low,
		Close:  r.Close,
		Volume: r.Volume,
	}
}

// OKResponse builds a success Response from a bar series.
func OKResponse(requestID string, s domain.BarSeries) Response {
	return Response{
		Metadata: ResponseMeta{
			RequestID: requestID,
			Status:    "success",
			ArraySizes: map[string]int{
				"time": len(s.Time), "open": len(s.Open), "high": len(s.High),
				"low": len(s.Low), "close": len(s.Close), "volume": len(s.Volume),
			},
		},
		Time: s.Time, Open: s.Open, High: s.High, Low: s.Low, Close: s.Close, Volume: s.Volume,
	}
}

// ErrResponse builds an error Response carrying msg.
func ErrResponse(requestID, msg string) Response {
	return Response{Metadata: ResponseMeta{RequestID: requestID, Status: "error", Error: msg}}
}

// EncodeResponse serializes r for the per-request reply slot.
func EncodeResponse(r Response) ([]byte, error) {
	b, err := msgpack.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("quotesproto.EncodeResponse: %w", err)
	}
	return b, nil
}

// DecodeResponse parses a payload read off a reply slot.
func DecodeResponse(payload []byte) (Response, error) {
	var r Response
	if err := msgpack.Unmarshal(payload, &r); err != nil {
		return Response{}, fmt.Errorf("quotesproto.DecodeResponse: %w", err)
	}
	return r, nil
}
