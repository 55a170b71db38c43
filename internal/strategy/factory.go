package strategy

import (
	"errors"

	"alert-backtest-lab/internal/domain"
)

// Factory errors
var (
	ErrUnknownEntryType     = errors.New("unknown entry type")
	ErrUnknownExitType      = errors.New("unknown exit type")
	ErrMissingTargetDropPct = errors.New("DIP_WAIT requires TargetDropPct")
	ErrInvalidTargetDropPct = errors.New("TargetDropPct must be in (-1, 0)")
	ErrMissingWait          = errors.New("TIME_WAIT requires WaitMs")
	ErrInvalidWait          = errors.New("WaitMs must be >= 0")
	ErrMissingLimitPrice    = errors.New("LIMIT_ORDER requires LimitPrice")
	ErrInvalidLimitPrice    = errors.New("LimitPrice must be > 0")
	ErrInvalidMaxWait       = errors.New("MaxWaitMs must be > 0")
	ErrEmptyPhases          = errors.New("phased exit requires at least one phase")
	ErrInvalidStopPct       = errors.New("phase StopPct must be in (0, 1)")
	ErrMissingPhaseTarget   = errors.New("only the last phase may omit TargetMultiple")
	ErrNonIncreasingTargets = errors.New("phase targets must be strictly increasing and > 1")
	ErrMissingMaxDuration   = errors.New("phased exit requires MaxDurationMs")
	ErrInvalidMaxDuration   = errors.New("MaxDurationMs must be > 0")
	ErrMissingTPMult        = errors.New("TP_SL requires TPMult")
	ErrInvalidTPMult        = errors.New("TPMult must be > 1")
	ErrMissingSLMult        = errors.New("TP_SL requires SLMult")
	ErrInvalidSLMult        = errors.New("SLMult must be in (0, 1)")
	ErrInvalidIntrabarOrder = errors.New("IntrabarOrder must be tp_first or sl_first")
)

// EntryFromConfig creates an EntryStrategy from domain.EntryConfig.
// Validates required parameters per entry type.
func EntryFromConfig(cfg domain.EntryConfig) (EntryStrategy, error) {
	if cfg.MaxWaitMs != nil && *cfg.MaxWaitMs <= 0 {
		return nil, ErrInvalidMaxWait
	}

	switch cfg.EntryType {
	case domain.EntryTypeImmediate:
		return NewImmediateEntry(), nil
	case domain.EntryTypeDipWait:
		if cfg.TargetDropPct == nil {
			return nil, ErrMissingTargetDropPct
		}
		if *cfg.TargetDropPct <= -1 || *cfg.TargetDropPct >= 0 {
			return nil, ErrInvalidTargetDropPct
		}
		return NewDipWaitEntry(*cfg.TargetDropPct, cfg.MaxWaitMs), nil
	case domain.EntryTypeTimeWait:
		if cfg.WaitMs == nil {
			return nil, ErrMissingWait
		}
		if *cfg.WaitMs < 0 {
			return nil, ErrInvalidWait
		}
		return NewTimeWaitEntry(*cfg.WaitMs), nil
	case domain.EntryTypeLimitOrder:
		if cfg.LimitPrice == nil {
			return nil, ErrMissingLimitPrice
		}
		if *cfg.LimitPrice <= 0 {
			return nil, ErrInvalidLimitPrice
		}
		return NewLimitOrderEntry(*cfg.LimitPrice, cfg.MaxWaitMs), nil
	default:
		return nil, ErrUnknownEntryType
	}
}

// ExitFromConfig creates an ExitStrategy from domain.ExitConfig.
// Validates required parameters per exit type.
func ExitFromConfig(cfg domain.ExitConfig) (ExitStrategy, error) {
	if !cfg.IntrabarOrder.IsValid() {
		return nil, ErrInvalidIntrabarOrder
	}
	if cfg.MaxDurationMs != nil && *cfg.MaxDurationMs <= 0 {
		return nil, ErrInvalidMaxDuration
	}

	switch cfg.ExitType {
	case domain.ExitTypeStaticPhased, domain.ExitTypeTrailingPhased:
		if err := validatePhases(cfg.Phases); err != nil {
			return nil, err
		}
		if cfg.MaxDurationMs == nil {
			return nil, ErrMissingMaxDuration
		}
		if cfg.ExitType == domain.ExitTypeStaticPhased {
			return NewStaticPhasedExit(cfg.Phases, *cfg.MaxDurationMs, cfg.IntrabarOrder), nil
		}
		return NewTrailingPhasedExit(cfg.Phases, *cfg.MaxDurationMs, cfg.IntrabarOrder), nil
	case domain.ExitTypeTakeProfitStop:
		if cfg.TPMult == nil {
			return nil, ErrMissingTPMult
		}
		if *cfg.TPMult <= 1 {
			return nil, ErrInvalidTPMult
		}
		if cfg.SLMult == nil {
			return nil, ErrMissingSLMult
		}
		if *cfg.SLMult <= 0 || *cfg.SLMult >= 1 {
			return nil, ErrInvalidSLMult
		}
		var hold int64
		if cfg.MaxDurationMs != nil {
			hold = *cfg.MaxDurationMs
		}
		return NewTakeProfitStopExit(*cfg.TPMult, *cfg.SLMult, hold, cfg.IntrabarOrder), nil
	default:
		return nil, ErrUnknownExitType
	}
}

func validatePhases(phases []domain.Phase) error {
	if len(phases) == 0 {
		return ErrEmptyPhases
	}

	prev := 1.0
	for i, p := range phases {
		if p.StopPct <= 0 || p.StopPct >= 1 {
			return ErrInvalidStopPct
		}
		if p.TargetMultiple == nil {
			if i != len(phases)-1 {
				return ErrMissingPhaseTarget
			}
			continue
		}
		if *p.TargetMultiple <= prev {
			return ErrNonIncreasingTargets
		}
		prev = *p.TargetMultiple
	}
	return nil
}
