package effect

import (
	"fmt"

	"github.com/roach88/husk/internal/wire"
)

// HTTPResponse is the shell's answer to an HTTP operation.
type HTTPResponse struct {
	Status  uint16
	Headers []Header
	Body    []byte
}

// KVResult is the shell's answer to a key-value operation. Found is false
// for a get on a missing key; sets and deletes acknowledge with Found=true.
type KVResult struct {
	Found bool
	Value []byte
}

// PubSubMessage is one delivery on a subscription.
type PubSubMessage struct {
	Payload []byte
}

// PlatformInfo describes the host the shell runs on.
type PlatformInfo struct {
	OS      string
	Arch    string
	Version string
}

// Response is the envelope the shell sends back through resolve.
//
// Done controls continuation lifetime: the registry retires the request's
// continuation when Done is true, regardless of kind. Finite operations are
// always delivered Done=true; a subscription delivers Done=false per message
// and Done=true to terminate the stream.
//
// Err carries an operation-level failure as data (a network error, a storage
// fault). When Err is non-empty the kind-specific body is absent. Failures
// reported this way are ordinary input to update logic, never engine errors.
type Response struct {
	Done bool
	Kind Kind
	Err  string

	HTTP     *HTTPResponse
	Timer    bool
	KV       *KVResult
	PubSub   *PubSubMessage
	Platform *PlatformInfo
}

// EncodeResponse encodes the envelope: done flag, kind tag, error string,
// then the body when the error is empty.
func EncodeResponse(res Response) []byte {
	w := wire.NewWriter()
	w.Bool(res.Done)
	w.U8(uint8(res.Kind))
	w.String(res.Err)
	if res.Err != "" {
		return w.Bytes()
	}
	switch res.Kind {
	case KindHTTP:
		w.U16(res.HTTP.Status)
		w.U32(uint32(len(res.HTTP.Headers)))
		for _, h := range res.HTTP.Headers {
			w.String(h.Name)
			w.String(h.Value)
		}
		w.Blob(res.HTTP.Body)
	case KindTimer:
		// fired; no body
	case KindKeyValue:
		w.Bool(res.KV.Found)
		w.Blob(res.KV.Value)
	case KindPubSub:
		w.Blob(res.PubSub.Payload)
	case KindPlatform:
		w.String(res.Platform.OS)
		w.String(res.Platform.Arch)
		w.String(res.Platform.Version)
	}
	return w.Bytes()
}

// DecodeResponse decodes a full response envelope, rejecting trailing bytes.
func DecodeResponse(buf []byte) (Response, error) {
	r := wire.NewReader(buf)
	res, err := decodeResponse(r)
	if err != nil {
		return Response{}, err
	}
	if err := r.Finish(); err != nil {
		return Response{}, err
	}
	return res, nil
}

func decodeResponse(r *wire.Reader) (Response, error) {
	var res Response
	var err error
	if res.Done, err = r.Bool(); err != nil {
		return Response{}, err
	}
	tag, err := r.U8()
	if err != nil {
		return Response{}, err
	}
	res.Kind = Kind(tag)
	if res.Err, err = r.String(); err != nil {
		return Response{}, err
	}
	if res.Err != "" {
		return res, nil
	}
	switch res.Kind {
	case KindHTTP:
		h := &HTTPResponse{}
		if h.Status, err = r.U16(); err != nil {
			return Response{}, err
		}
		n, err := r.U32()
		if err != nil {
			return Response{}, err
		}
		for i := uint32(0); i < n; i++ {
			var hd Header
			if hd.Name, err = r.String(); err != nil {
				return Response{}, err
			}
			if hd.Value, err = r.String(); err != nil {
				return Response{}, err
			}
			h.Headers = append(h.Headers, hd)
		}
		if h.Body, err = r.Blob(); err != nil {
			return Response{}, err
		}
		res.HTTP = h
	case KindTimer:
		res.Timer = true
	case KindKeyValue:
		kv := &KVResult{}
		if kv.Found, err = r.Bool(); err != nil {
			return Response{}, err
		}
		if kv.Value, err = r.Blob(); err != nil {
			return Response{}, err
		}
		res.KV = kv
	case KindPubSub:
		ps := &PubSubMessage{}
		if ps.Payload, err = r.Blob(); err != nil {
			return Response{}, err
		}
		res.PubSub = ps
	case KindPlatform:
		p := &PlatformInfo{}
		if p.OS, err = r.String(); err != nil {
			return Response{}, err
		}
		if p.Arch, err = r.String(); err != nil {
			return Response{}, err
		}
		if p.Version, err = r.String(); err != nil {
			return Response{}, err
		}
		res.Platform = p
	default:
		return Response{}, fmt.Errorf("%w: response kind %d", wire.ErrBadTag, tag)
	}
	return res, nil
}
