package decoder

import (
	"errors"
	"fmt"
	"io"

	astiav "github.com/asticode/go-astiav"

	"github.com/vidreg/vidreg/internal/keyframe"
	"github.com/vidreg/vidreg/internal/rational"
	"github.com/vidreg/vidreg/internal/verrors"
)

// AstiavOpener opens sources with ffmpeg (via go-astiav). This is the
// production Opener; tests use a fake instead (see fake.go).
type AstiavOpener struct{}

func (AstiavOpener) Open(src Source) (Decoder, error) {
	if src.Path == "" && src.Reader == nil {
		return nil, fmt.Errorf("decoder: source has neither a path nor a reader")
	}

	fc := astiav.AllocFormatContext()
	if fc == nil {
		return nil, fmt.Errorf("decoder: AllocFormatContext failed")
	}

	var ioCtx *astiav.IOContext
	openName := src.Path
	if src.Reader != nil {
		// Archive-backed source: hand ffmpeg a custom AVIOContext that
		// serves reads from the byte range inside the mmap'd archive
		// instead of opening a file by name.
		section := io.NewSectionReader(src.Reader, src.Offset, src.Length)
		ctx, err := astiav.AllocIOContext(1<<15, false, func(buf []byte) (int, error) {
			return section.Read(buf)
		}, nil, func(offset int64, whence int) (int64, error) {
			return section.Seek(offset, whence)
		})
		if err != nil {
			fc.Free()
			return nil, fmt.Errorf("decoder: custom AVIOContext: %w", err)
		}
		ioCtx = ctx
		fc.SetPb(ioCtx)
		openName = "" // let ffmpeg read through Pb rather than opening a named file
	}

	if err := fc.OpenInput(openName, nil, nil); err != nil {
		fc.Free()
		if ioCtx != nil {
			ioCtx.Free()
		}
		return nil, &verrors.SourceError{Path: src.Path, Kind: verrors.ErrUnsupportedFormat, Err: err}
	}
	if err := fc.FindStreamInfo(nil); err != nil {
		fc.Free()
		return nil, &verrors.SourceError{Path: src.Path, Kind: verrors.ErrUnsupportedFormat, Err: err}
	}

	streamIdx := -1
	for i, s := range fc.Streams() {
		if s.CodecParameters().MediaType() == astiav.MediaTypeVideo {
			streamIdx = i
			break
		}
	}
	if streamIdx < 0 {
		fc.Free()
		return nil, &verrors.SourceError{Path: src.Path, Kind: verrors.ErrUnsupportedFormat, Err: errors.New("no video stream")}
	}
	stream := fc.Streams()[streamIdx]

	params := stream.CodecParameters()
	dec := astiav.FindDecoder(params.CodecID())
	if dec == nil {
		fc.Free()
		return nil, &verrors.SourceError{Path: src.Path, Kind: verrors.ErrUnsupportedFormat, Err: errors.New("no decoder for codec")}
	}
	ctx := astiav.AllocCodecContext(dec)
	if ctx == nil {
		fc.Free()
		return nil, fmt.Errorf("decoder: AllocCodecContext failed")
	}
	if err := params.ToCodecContext(ctx); err != nil {
		ctx.Free()
		fc.Free()
		return nil, fmt.Errorf("decoder: ToCodecContext: %w", err)
	}
	if err := ctx.Open(dec, nil); err != nil {
		ctx.Free()
		fc.Free()
		return nil, fmt.Errorf("decoder: codec open: %w", err)
	}

	rate := stream.AvgFrameRate()
	num, den := int64(rate.Num()), int64(rate.Den())
	if num <= 0 || den <= 0 {
		num, den = 25, 1
	}
	frameRate, err := rational.New(num, den)
	if err != nil {
		ctx.Free()
		fc.Free()
		return nil, fmt.Errorf("decoder: invalid frame rate: %w", err)
	}

	entries, numFrames, width, height, err := probeKeyframes(fc, stream, ctx)
	if err != nil {
		ctx.Free()
		fc.Free()
		return nil, &verrors.SourceError{Path: src.Path, Kind: verrors.ErrUnsupportedFormat, Err: err}
	}
	kfIndex, err := keyframe.Build(entries)
	if err != nil {
		ctx.Free()
		fc.Free()
		return nil, fmt.Errorf("decoder: %w", err)
	}

	d := &astiavDecoder{
		fc:         fc,
		ctx:        ctx,
		ioCtx:      ioCtx,
		streamIdx:  streamIdx,
		stream:     stream,
		pkt:        astiav.AllocPacket(),
		frame:      astiav.AllocFrame(),
		metadata:   Metadata{NumFrames: numFrames, Width: width, Height: height, FrameRate: frameRate, Keyframes: kfIndex},
		nextToRead: 0,
	}
	return d, nil
}

// probeKeyframes does a single linear pass over the stream's packets to
// record every keyframe position and count total frames, then rewinds.
// Real-world containers expose this cheaply via index seeking; the
// linear fallback here keeps the adapter correct even without one.
func probeKeyframes(fc *astiav.FormatContext, stream *astiav.Stream, ctx *astiav.CodecContext) ([]keyframe.Entry, int, int, int, error) {
	var entries []keyframe.Entry
	pkt := astiav.AllocPacket()
	defer pkt.Free()

	width, height := ctx.Width(), ctx.Height()
	count := 0
	for {
		if err := fc.ReadFrame(pkt); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, astiav.ErrEof) {
				break
			}
			return nil, 0, 0, 0, fmt.Errorf("probe: %w", err)
		}
		if pkt.StreamIndex() != stream.Index() {
			pkt.Unref()
			continue
		}
		if pkt.Flags().Has(astiav.PacketFlagKey) {
			entries = append(entries, keyframe.Entry{Frame: count, Pos: pkt.Pos()})
		}
		count++
		pkt.Unref()
	}
	if err := fc.SeekFrame(stream.Index(), 0, astiav.NewSeekFlags(astiav.SeekFlagBackward)); err != nil {
		return nil, 0, 0, 0, fmt.Errorf("probe: rewind: %w", err)
	}
	if len(entries) == 0 || entries[0].Frame != 0 {
		entries = append([]keyframe.Entry{{Frame: 0, Pos: 0}}, entries...)
	}
	return entries, count, width, height, nil
}

// astiavDecoder is a single opened, sequentially read media stream.
// Not safe for concurrent use: callers (video.VideoHandle) serialize
// access with their own per-handle lock.
type astiavDecoder struct {
	fc        *astiav.FormatContext
	ctx       *astiav.CodecContext
	ioCtx     *astiav.IOContext // non-nil only for archive-backed (Reader) sources
	stream    *astiav.Stream
	streamIdx int

	pkt   *astiav.Packet
	frame *astiav.Frame

	scaler *astiav.SoftwareScaleContext
	dst    *astiav.Frame

	metadata   Metadata
	nextToRead int // presentation frame number the next DecodeNext will produce
}

func (d *astiavDecoder) Probe() Metadata { return d.metadata }

func (d *astiavDecoder) SeekToCoveringKeyframe(target int) error {
	kf := d.metadata.Keyframes.Covering(target)
	if err := d.fc.SeekFrame(d.stream.Index(), kf.Pos, astiav.NewSeekFlags(astiav.SeekFlagByte, astiav.SeekFlagBackward)); err != nil {
		return fmt.Errorf("decoder: seek to keyframe %d: %w", kf.Frame, err)
	}
	d.ctx.FlushBuffers()
	d.nextToRead = kf.Frame
	return nil
}

func (d *astiavDecoder) DecodeNext() (Frame, error) {
	for {
		if err := d.fc.ReadFrame(d.pkt); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, astiav.ErrEof) {
				if sendErr := d.ctx.SendPacket(nil); sendErr != nil {
					return Frame{}, verrors.NewDecodeError(d.nextToRead, sendErr)
				}
				return d.receiveOne()
			}
			return Frame{}, verrors.NewDecodeError(d.nextToRead, err)
		}
		if d.pkt.StreamIndex() != d.streamIdx {
			d.pkt.Unref()
			continue
		}
		err := d.ctx.SendPacket(d.pkt)
		d.pkt.Unref()
		if err != nil && !errors.Is(err, astiav.ErrEagain) {
			return Frame{}, verrors.NewDecodeError(d.nextToRead, err)
		}
		f, err := d.receiveOne()
		if errors.Is(err, astiav.ErrEagain) {
			continue
		}
		return f, err
	}
}

func (d *astiavDecoder) receiveOne() (Frame, error) {
	if err := d.ctx.ReceiveFrame(d.frame); err != nil {
		return Frame{}, err
	}
	defer d.frame.Unref()

	if err := d.ensureScaler(); err != nil {
		return Frame{}, verrors.NewDecodeError(d.nextToRead, err)
	}
	if err := d.scaler.ScaleFrame(d.frame, d.dst); err != nil {
		return Frame{}, verrors.NewDecodeError(d.nextToRead, fmt.Errorf("scale: %w", err))
	}
	n, err := d.dst.ImageBufferSize(1)
	if err != nil {
		return Frame{}, verrors.NewDecodeError(d.nextToRead, err)
	}
	pix := make([]byte, n)
	if _, err := d.dst.ImageCopyToBuffer(pix, 1); err != nil {
		return Frame{}, verrors.NewDecodeError(d.nextToRead, err)
	}

	out := Frame{Number: d.nextToRead, Width: d.metadata.Width, Height: d.metadata.Height, Pix: pix}
	d.nextToRead++
	return out, nil
}

func (d *astiavDecoder) ensureScaler() error {
	if d.scaler != nil {
		return nil
	}
	ssc, err := astiav.CreateSoftwareScaleContext(
		d.frame.Width(), d.frame.Height(), d.frame.PixelFormat(),
		d.metadata.Width, d.metadata.Height, astiav.PixelFormatRgb24,
		astiav.NewSoftwareScaleContextFlags(),
	)
	if err != nil {
		return fmt.Errorf("create scaler: %w", err)
	}
	dst := astiav.AllocFrame()
	dst.SetWidth(d.metadata.Width)
	dst.SetHeight(d.metadata.Height)
	dst.SetPixelFormat(astiav.PixelFormatRgb24)
	if err := dst.AllocBuffer(1); err != nil {
		dst.Free()
		ssc.Free()
		return fmt.Errorf("alloc scaled frame: %w", err)
	}
	d.scaler = ssc
	d.dst = dst
	return nil
}

func (d *astiavDecoder) Close() error {
	if d.dst != nil {
		d.dst.Free()
	}
	if d.scaler != nil {
		d.scaler.Free()
	}
	if d.frame != nil {
		d.frame.Free()
	}
	if d.pkt != nil {
		d.pkt.Free()
	}
	d.ctx.Free()
	d.fc.Free()
	if d.ioCtx != nil {
		d.ioCtx.Free()
	}
	return nil
}
