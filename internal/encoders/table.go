package encoders

import "strconv"

// x265PresetNames is ordered slowest first so a larger configured preset
// encodes faster.
var x265PresetNames = []string{
	"placebo", "veryslow", "slower", "slow", "medium",
	"fast", "faster", "veryfast", "superfast", "ultrafast",
}

func itoa(v int) string { return strconv.Itoa(v) }

func plus(n int) func(int) string {
	return func(v int) string { return strconv.Itoa(v + n) }
}

func from(n int) func(int) string {
	return func(v int) string { return strconv.Itoa(n - v) }
}

var table = []Spec{
	{
		ID: Libx265, Family: FamilyHEVC, Backend: BackendNone,
		QualityParams: []string{"-crf"}, QualityMin: 0, QualityMax: 51,
		PresetParam: "-preset", PresetMin: 0, PresetMax: len(x265PresetNames) - 1,
		DefaultQuality: 23, DefaultPreset: 4,
		qualityValue: itoa,
		presetValue:  func(v int) string { return x265PresetNames[v] },
	},
	{
		ID: HEVCAMF, Family: FamilyHEVC, Backend: BackendAMD,
		RateControl:   []string{"-rc", "cqp"},
		QualityParams: []string{"-qp_i", "-qp_p"}, QualityMin: 0, QualityMax: 51,
		PresetParam: "-quality", PresetMin: 0, PresetMax: 10,
		DefaultQuality: 23, DefaultPreset: 5,
		qualityValue: itoa,
		presetValue:  from(10),
	},
	{
		ID: HEVCNVENC, Family: FamilyHEVC, Backend: BackendNVIDIA,
		RateControl:   []string{"-rc", "constqp"},
		QualityParams: []string{"-cq"}, QualityMin: 0, QualityMax: 50,
		PresetParam: "-preset", PresetMin: 0, PresetMax: 6,
		DefaultQuality: 23, DefaultPreset: 4,
		qualityValue: plus(1),
		// nvenc exposes p1..p7 as enum values 12..18.
		presetValue: plus(12),
	},
	{
		ID: LibSVTAV1, Family: FamilyAV1, Backend: BackendNone,
		QualityParams: []string{"-crf"}, QualityMin: 0, QualityMax: 63,
		PresetParam: "-preset", PresetMin: 0, PresetMax: 13,
		DefaultQuality: 30, DefaultPreset: 5,
		qualityValue: itoa,
		presetValue:  from(13),
	},
	{
		ID: AV1AMF, Family: FamilyAV1, Backend: BackendAMD,
		RateControl:   []string{"-rc", "cqp"},
		QualityParams: []string{"-qp_i", "-qp_p"}, QualityMin: 0, QualityMax: 255,
		PresetParam: "-quality", PresetMin: 0, PresetMax: 9,
		DefaultQuality: 100, DefaultPreset: 5,
		qualityValue: itoa,
		presetValue:  func(v int) string { return strconv.Itoa(100 - 10*v) },
	},
	{
		ID: AV1NVENC, Family: FamilyAV1, Backend: BackendNVIDIA,
		RateControl:   []string{"-rc", "constqp"},
		QualityParams: []string{"-cq"}, QualityMin: 0, QualityMax: 62,
		PresetParam: "-preset", PresetMin: 0, PresetMax: 6,
		DefaultQuality: 30, DefaultPreset: 4,
		qualityValue: plus(1),
		presetValue:  plus(12),
	},
}
