// Package wire defines the messages and codec of the projection gRPC API.
//
// Messages travel as gob. The codec registers itself under the "gob"
// content subtype; clients select it with
// grpc.CallContentSubtype(wire.Name).
package wire

import (
	"bytes"
	"encoding/gob"
	"time"

	"google.golang.org/grpc/encoding"
)

// Name is the content subtype the codec registers under.
const Name = "gob"

// Codec marshals wire messages with encoding/gob.
type Codec struct{}

var _ encoding.Codec = Codec{}

func (Codec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (Codec) Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (Codec) Name() string { return Name }

func init() {
	encoding.RegisterCodec(Codec{})
}

// LoginRequest authenticates an API key.
type LoginRequest struct {
	APIKey string
}

// LoginReply carries a session token and its expiry.
type LoginReply struct {
	Token     string
	ExpiresAt time.Time
}

// RefreshRequest rotates a session token near its expiry.
type RefreshRequest struct {
	Token string
}

// FitRequest trains a model on the given rows and stores it under Name.
// Components 0 keeps the full basis. Refit replaces an existing model.
type FitRequest struct {
	Token      string
	Name       string
	Rows       [][]float64
	Components int
	Refit      bool
}

// FitReply returns the info of the freshly fitted model.
type FitReply struct {
	Model ModelInfoReply
}

// TransformRequest carries rows to project, reconstruct, or score with the
// named model.
type TransformRequest struct {
	Token string
	Name  string
	Rows  [][]float64
}

// MatrixReply carries projected or reconstructed rows.
type MatrixReply struct {
	Rows [][]float64
}

// ScalarReply carries a single scalar result.
type ScalarReply struct {
	Value float64
}

// RowChunk is one row of a streamed matrix reply.
type RowChunk struct {
	Index int
	Row   []float64
}

// DescribeRequest names the model to describe.
type DescribeRequest struct {
	Token string
	Name  string
}

// ModelInfoReply describes a stored model.
type ModelInfoReply struct {
	Name       string
	CreatedAt  time.Time
	Components int
	Features   int
	Samples    int
	Ratio      []float64
}

// CumsumRequest names the model whose cumulative explained-variance ratios
// to fetch.
type CumsumRequest struct {
	Token string
	Name  string
}

// VectorReply carries a single vector result.
type VectorReply struct {
	Values []float64
}

// ListRequest asks for all stored models.
type ListRequest struct {
	Token string
}

// ListReply lists stored models in name order.
type ListReply struct {
	Models []ModelInfoReply
}

// DeleteRequest names the model to remove.
type DeleteRequest struct {
	Token string
	Name  string
}

// DeleteReply acknowledges a deletion.
type DeleteReply struct{}
