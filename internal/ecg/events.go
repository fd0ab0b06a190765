package ecg

import "encoding/json"

// EventKind enumerates the closed set of cardiac conditions the engine
// evaluates. The numeric order is the evaluation order; composites (currently
// only Myocarditis) read the already-updated active state of lower kinds.
type EventKind int

const (
	Bradycardia EventKind = iota
	Tachycardia
	VentricularTachycardia
	Asystole
	IrregularRhythm
	SinusNodeDysfunction
	FirstDegreeAVBlock
	BundleBranchBlock
	LongQT
	ShortQT
	EarlyRepolarization
	Myocarditis

	kindCount
)

var kindNames = [kindCount]string{
	Bradycardia:            "Bradycardia",
	Tachycardia:            "Tachycardia",
	VentricularTachycardia: "Ventricular Tachycardia",
	Asystole:               "Asystole / Flatline",
	IrregularRhythm:        "Irregular Rhythm",
	SinusNodeDysfunction:   "Sinus Node Dysfunction",
	FirstDegreeAVBlock:     "First-Degree AV Block (possible)",
	BundleBranchBlock:      "Bundle Branch Block (possible)",
	LongQT:                 "Long QT (possible)",
	ShortQT:                "Short QT (possible)",
	EarlyRepolarization:    "Early Repolarization / ST Elevation (possible)",
	Myocarditis:            "Myocarditis (possible)",
}

var kindFromName = func() map[string]EventKind {
	m := make(map[string]EventKind, kindCount)
	for k, name := range kindNames {
		m[name] = EventKind(k)
	}
	return m
}()

func (k EventKind) String() string {
	if k >= 0 && k < kindCount {
		return kindNames[k]
	}
	return "unknown"
}

func (k EventKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *EventKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if v, ok := kindFromName[s]; ok {
		*k = v
	}
	return nil
}

// Kinds returns all event kinds in evaluation order.
func Kinds() []EventKind {
	out := make([]EventKind, kindCount)
	for i := range out {
		out[i] = EventKind(i)
	}
	return out
}
