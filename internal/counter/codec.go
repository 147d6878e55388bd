package counter

import (
	"fmt"

	"github.com/roach88/husk/internal/wire"
)

// Event wire tags. Both sides of the boundary know this set at build time.
const (
	tagIncrement uint8 = iota + 1
	tagFetch
	tagSave
	tagLoad
	tagWatch
	tagWhoAmI
)

// EncodeEvent produces the wire form of ev. Shells use this to build event
// payloads for Core.ProcessEvent.
func EncodeEvent(ev Event) []byte {
	w := wire.NewWriter()
	switch ev := ev.(type) {
	case Increment:
		w.U8(tagIncrement)
	case Fetch:
		w.U8(tagFetch)
		w.String(ev.URL)
	case Save:
		w.U8(tagSave)
	case Load:
		w.U8(tagLoad)
	case Watch:
		w.U8(tagWatch)
		w.String(ev.Topic)
	case WhoAmI:
		w.U8(tagWhoAmI)
	}
	return w.Bytes()
}

// DecodeEvent implements core.App.
func (App) DecodeEvent(r *wire.Reader) (any, error) {
	tag, err := r.U8()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagIncrement:
		return Increment{}, nil
	case tagFetch:
		url, err := r.String()
		if err != nil {
			return nil, err
		}
		return Fetch{URL: url}, nil
	case tagSave:
		return Save{}, nil
	case tagLoad:
		return Load{}, nil
	case tagWatch:
		topic, err := r.String()
		if err != nil {
			return nil, err
		}
		return Watch{Topic: topic}, nil
	case tagWhoAmI:
		return WhoAmI{}, nil
	default:
		return nil, fmt.Errorf("%w: counter event tag %d", wire.ErrBadTag, tag)
	}
}

// EncodeView implements core.App.
func (App) EncodeView(w *wire.Writer, view any) error {
	v, ok := view.(ViewModel)
	if !ok {
		return fmt.Errorf("counter: unexpected view type %T", view)
	}
	w.I64(v.Count)
	w.String(v.Remote)
	w.I64(v.Ticks)
	w.String(v.Platform)
	return nil
}

// DecodeView parses view bytes produced by EncodeView. Shells use this to
// render snapshots.
func DecodeView(buf []byte) (ViewModel, error) {
	r := wire.NewReader(buf)
	var v ViewModel
	var err error
	if v.Count, err = r.I64(); err != nil {
		return ViewModel{}, err
	}
	if v.Remote, err = r.String(); err != nil {
		return ViewModel{}, err
	}
	if v.Ticks, err = r.I64(); err != nil {
		return ViewModel{}, err
	}
	if v.Platform, err = r.String(); err != nil {
		return ViewModel{}, err
	}
	if err := r.Finish(); err != nil {
		return ViewModel{}, err
	}
	return v, nil
}
