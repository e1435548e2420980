package session

// Kind - начало или конец сессии.
type Kind int

const (
	KindStart Kind = iota
	KindEnd
)

func (k Kind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Target - смена или уборка.
type Target int

const (
	TargetShift Target = iota
	TargetCleaning
)

func (t Target) String() string {
	switch t {
	case TargetShift:
		return "shift"
	case TargetCleaning:
		return "cleaning"
	default:
		return "unknown"
	}
}

// Transition описывает одно ребро жизненного цикла. Все четыре перехода
// обрабатываются одним обобщённым обработчиком контроллера.
type Transition struct {
	Kind         Kind
	Target       Target
	RequiresScan bool
}

var (
	ShiftStart    = Transition{Kind: KindStart, Target: TargetShift, RequiresScan: true}
	ShiftEnd      = Transition{Kind: KindEnd, Target: TargetShift, RequiresScan: true}
	CleaningStart = Transition{Kind: KindStart, Target: TargetCleaning, RequiresScan: true}
	CleaningEnd   = Transition{Kind: KindEnd, Target: TargetCleaning, RequiresScan: true}
)

// WithScan возвращает копию перехода с нужным способом подтверждения.
func (t Transition) WithScan(scan bool) Transition {
	t.RequiresScan = scan
	return t
}

func (t Transition) Purpose() Purpose {
	switch {
	case t.Kind == KindStart && t.Target == TargetShift:
		return PurposeStartShift
	case t.Kind == KindEnd && t.Target == TargetShift:
		return PurposeEndShift
	case t.Kind == KindStart && t.Target == TargetCleaning:
		return PurposeStartCleaning
	default:
		return PurposeEndCleaning
	}
}

func (t Transition) String() string {
	return t.Kind.String() + " " + t.Target.String()
}

// TransitionFor восстанавливает переход по цели сканера.
func TransitionFor(p Purpose) (Transition, bool) {
	switch p {
	case PurposeStartShift:
		return ShiftStart, true
	case PurposeEndShift:
		return ShiftEnd, true
	case PurposeStartCleaning:
		return CleaningStart, true
	case PurposeEndCleaning:
		return CleaningEnd, true
	default:
		return Transition{}, false
	}
}

func (t Transition) confirmation() (title, description string) {
	switch {
	case t.Kind == KindEnd && t.Target == TargetShift:
		return "End shift without scanning?",
			"The shift will be closed without QR verification. This action cannot be undone."
	case t.Kind == KindEnd && t.Target == TargetCleaning:
		return "End cleaning without scanning?",
			"The cleaning will be closed without QR verification. This action cannot be undone."
	case t.Target == TargetShift:
		return "Start shift without scanning?",
			"Scanning is unavailable. The shift will start at an unregistered area."
	default:
		return "Start cleaning without scanning?",
			"Scanning is unavailable. The cleaning will start at an unregistered area."
	}
}
