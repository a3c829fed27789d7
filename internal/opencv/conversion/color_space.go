package conversion

import (
	"fmt"

	"leaffliction/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// ColorSpace represents the color spaces the pipeline reads channels from
type ColorSpace int

const (
	ColorSpaceBGR ColorSpace = iota
	ColorSpaceHSV
	ColorSpaceLab
)

func (cs ColorSpace) String() string {
	switch cs {
	case ColorSpaceBGR:
		return "BGR"
	case ColorSpaceHSV:
		return "HSV"
	case ColorSpaceLab:
		return "Lab"
	default:
		return fmt.Sprintf("ColorSpace(%d)", int(cs))
	}
}

// Channel names one 8-bit plane of a color space.
type Channel int

const (
	Blue Channel = iota
	Green
	Red
	Hue
	Saturation
	Value
	Lightness
	GreenMagenta
	BlueYellow
)

var channelInfo = map[Channel]struct {
	name  string
	space ColorSpace
	index int
}{
	Blue:         {"blue", ColorSpaceBGR, 0},
	Green:        {"green", ColorSpaceBGR, 1},
	Red:          {"red", ColorSpaceBGR, 2},
	Hue:          {"hue", ColorSpaceHSV, 0},
	Saturation:   {"saturation", ColorSpaceHSV, 1},
	Value:        {"value", ColorSpaceHSV, 2},
	Lightness:    {"lightness", ColorSpaceLab, 0},
	GreenMagenta: {"green-magenta", ColorSpaceLab, 1},
	BlueYellow:   {"blue-yellow", ColorSpaceLab, 2},
}

func (c Channel) String() string {
	if info, ok := channelInfo[c]; ok {
		return info.name
	}
	return fmt.Sprintf("Channel(%d)", int(c))
}

func (c Channel) Space() ColorSpace { return channelInfo[c].space }

// ConvertColorSpace converts a BGR Mat to the target space. The caller owns
// the result.
func ConvertColorSpace(src gocv.Mat, target ColorSpace) (gocv.Mat, error) {
	if err := safe.ValidateColor(src, "color space conversion"); err != nil {
		return gocv.NewMat(), err
	}

	dst := gocv.NewMat()
	switch target {
	case ColorSpaceBGR:
		src.CopyTo(&dst)
	case ColorSpaceHSV:
		gocv.CvtColor(src, &dst, gocv.ColorBGRToHSV)
	case ColorSpaceLab:
		gocv.CvtColor(src, &dst, gocv.ColorBGRToLab)
	default:
		dst.Close()
		return gocv.NewMat(), fmt.Errorf("unsupported color space %v", target)
	}

	return dst, nil
}

// ExtractChannel returns one plane of src (BGR) as a single channel Mat.
func ExtractChannel(src gocv.Mat, c Channel) (gocv.Mat, error) {
	planes, err := ExtractChannels(src, c)
	if err != nil {
		return gocv.NewMat(), err
	}
	return planes[c], nil
}

// ExtractChannels converts src once per needed color space and returns the
// requested planes. The caller owns every returned Mat.
func ExtractChannels(src gocv.Mat, channels ...Channel) (map[Channel]gocv.Mat, error) {
	bySpace := make(map[ColorSpace][]Channel)
	for _, c := range channels {
		if _, ok := channelInfo[c]; !ok {
			return nil, fmt.Errorf("unknown channel %d", int(c))
		}
		bySpace[c.Space()] = append(bySpace[c.Space()], c)
	}

	out := make(map[Channel]gocv.Mat, len(channels))
	for space, wanted := range bySpace {
		converted, err := ConvertColorSpace(src, space)
		if err != nil {
			closeAll(out)
			return nil, fmt.Errorf("%s conversion failed: %w", space, err)
		}

		planes := gocv.Split(converted)
		converted.Close()

		keep := make(map[int]bool, len(wanted))
		for _, c := range wanted {
			keep[channelInfo[c].index] = true
			out[c] = planes[channelInfo[c].index]
		}
		for i := range planes {
			if !keep[i] {
				planes[i].Close()
			}
		}
	}

	return out, nil
}

func closeAll(mats map[Channel]gocv.Mat) {
	for _, m := range mats {
		m.Close()
	}
}
