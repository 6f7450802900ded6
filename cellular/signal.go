package cellular

import "github.com/pkg/errors"

// Rat is a radio access technology reported by the modem.
type Rat int

const (
	RatGSM Rat = iota
	RatWCDMA
	RatEDGE
	RatHSDPA
	RatHSUPA
	RatHSDPAHSUPA
	RatLTE
	RatCatM1
	RatNBIoT
	RatUnknown
)

func (r Rat) String() string {
	switch r {
	case RatGSM:
		return "GSM"
	case RatWCDMA:
		return "WCDMA"
	case RatEDGE:
		return "EDGE"
	case RatHSDPA:
		return "HSDPA"
	case RatHSUPA:
		return "HSUPA"
	case RatHSDPAHSUPA:
		return "HSDPA/HSUPA"
	case RatLTE:
		return "LTE"
	case RatCatM1:
		return "CAT-M1"
	case RatNBIoT:
		return "NB-IOT"
	default:
		return "unknown"
	}
}

const (
	// InvalidSignalValue marks an RSSI, RSRP or BER field the modem
	// reported as unknown.
	InvalidSignalValue = -32768
	// InvalidSignalBarValue marks a bar count that could not be
	// computed.
	InvalidSignalBarValue = -1

	csqUnknown  = 99
	csqRSSIMin  = 0
	csqRSSIMax  = 31
	csqBERMin   = 0
	csqBERMax   = 7
	csqRSSIBase = -113
	csqRSSIStep = 2
)

// SignalInfo carries the absolute signal metrics in dBm/dB and the
// derived bar count.
type SignalInfo struct {
	RSSI int // dBm
	RSRP int // dBm
	RSRQ int // dB
	BER  int // hundredths of a percent
	Bars int
}

// ConvertCSQRSSI converts a 0..31 CSQ report to dBm. 99 converts to
// InvalidSignalValue; anything else out of range is an error.
func ConvertCSQRSSI(csq int) (int, error) {
	if csq == csqUnknown {
		return InvalidSignalValue, nil
	}
	if csq < csqRSSIMin || csq > csqRSSIMax {
		return 0, StatusBadParameter
	}
	return csqRSSIBase + csq*csqRSSIStep, nil
}

// rxqualToBER maps the 0..7 RXQUAL report to a bit error rate in
// hundredths of a percent.
var rxqualToBER = [8]int{14, 28, 57, 113, 226, 453, 905, 1810}

// ConvertCSQBER converts a 0..7 CSQ bit-error report to hundredths of a
// percent. 99 converts to InvalidSignalValue.
func ConvertCSQBER(csq int) (int, error) {
	if csq == csqUnknown {
		return InvalidSignalValue, nil
	}
	if csq < csqBERMin || csq > csqBERMax {
		return 0, StatusBadParameter
	}
	return rxqualToBER[csq], nil
}

type signalBarsEntry struct {
	upperThreshold int
	bars           int
}

// Upper thresholds are kept in increasing order; the first entry at or
// above the measurement wins. The last entry is the catch-all for strong
// signal.
var gsmSignalBars = []signalBarsEntry{
	{-104, 1},
	{-98, 2},
	{-89, 3},
	{-80, 4},
	{0, 5},
}

var lteCatMSignalBars = []signalBarsEntry{
	{-115, 1},
	{-105, 2},
	{-95, 3},
	{-85, 4},
	{0, 5},
}

var lteNBIoTSignalBars = []signalBarsEntry{
	{-115, 1},
	{-105, 2},
	{-95, 3},
	{-85, 4},
	{0, 5},
}

// ErrUnknownRat indicates signal bars are not defined for the RAT.
var ErrUnknownRat = errors.New("unknown RAT")

func lookupBars(table []signalBarsEntry, value int) int {
	if value == InvalidSignalValue {
		return InvalidSignalBarValue
	}
	for _, e := range table {
		if value <= e.upperThreshold {
			return e.bars
		}
	}
	return InvalidSignalBarValue
}

// ComputeSignalBars maps the measured signal to a 1..5 bar count for the
// given RAT: RSSI for GSM/EDGE, RSRP for the LTE family. Unknown RATs
// are an error.
func ComputeSignalBars(rat Rat, info SignalInfo) (int, error) {
	switch rat {
	case RatGSM, RatEDGE:
		return lookupBars(gsmSignalBars, info.RSSI), nil
	case RatLTE, RatCatM1:
		return lookupBars(lteCatMSignalBars, info.RSRP), nil
	case RatNBIoT:
		return lookupBars(lteNBIoTSignalBars, info.RSRP), nil
	default:
		return InvalidSignalBarValue, errors.Wrap(ErrUnknownRat, rat.String())
	}
}
