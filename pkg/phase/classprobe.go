package phase

import (
	sercos3 "github.com/sercos3/master"
	"github.com/sercos3/master/pkg/scp"
	"github.com/sercos3/master/pkg/slave"
	"github.com/sercos3/master/pkg/svc"
)

const (
	idnSupportedClasses  uint32 = 1000
	idnSupportedClasses01 uint32 = 0x03E80001 // S-0-1000.0.1 (SI=0, SE=1 packed)
	maxClassListBytes           = 256
)

type probeStep uint8

const (
	probeOpenList probeStep = iota
	probeReadListLen
	probeReadListData
	probeOpenAttr01
	probeReadAttr01
	probeWrite01
	probeDone
)

// classProbe is the per-slave sub-FSM behind CheckVersion (
// steps 1-3, 6): read S-0-1000's list, then probe S-0-1000.0.1's
// existence via an element-3 attribute read ("not there" is informational,
//).
type classProbe struct {
	macro *svc.Macro
	slv   *slave.Slave

	state       probeStep
	listLen     uint16
	has1000_0_1 bool
	attrErr     error
}

func newClassProbe(macro *svc.Macro, s *slave.Slave) *classProbe {
	return &classProbe{macro: macro, slv: s}
}

func (p *classProbe) Advance() sercos3.Step {
	switch p.state {
	case probeOpenList:
		if err := p.macro.Open(idnSupportedClasses); err != nil {
			return sercos3.StepFail(err)
		}
		if err := p.macro.ReadAttribute(); err != nil {
			return sercos3.StepFail(err)
		}
		p.state = probeReadListLen
		return sercos3.StepWait(0)

	case probeReadListLen:
		step := p.macro.Advance()
		if step.InProcess() {
			return step
		}
		if step.Failed() {
			return step
		}
		if err := p.macro.ReadData(4); err != nil {
			return sercos3.StepFail(err)
		}
		p.state = probeReadListData
		return sercos3.StepWait(0)

	case probeReadListData:
		step := p.macro.Advance()
		if step.InProcess() {
			return step
		}
		if step.Failed() {
			return step
		}
		current, _, err := p.macro.GetListLength()
		if err == nil {
			p.listLen = current
		}
		if err := p.macro.ReadData(maxClassListBytes); err != nil {
			return sercos3.StepFail(err)
		}
		p.state = probeOpenAttr01
		return sercos3.StepWait(0)

	case probeOpenAttr01:
		step := p.macro.Advance()
		if step.InProcess() {
			return step
		}
		if step.Failed() {
			return step
		}
		p.slv.SupportedClasses = scp.DecodeClassList(p.macro.LastData())
		if err := p.macro.Open(idnSupportedClasses01); err != nil {
			return sercos3.StepFail(err)
		}
		if err := p.macro.ReadAttribute(); err != nil {
			return sercos3.StepFail(err)
		}
		p.state = probeReadAttr01
		return sercos3.StepWait(0)

	case probeReadAttr01:
		step := p.macro.Advance()
		if step.Failed() {
			// "not there" is informational: the
			// slave simply lacks S-0-1000.0.1.
			p.has1000_0_1 = false
			p.state = probeDone
			return sercos3.StepDone()
		}
		if step.InProcess() {
			return step
		}
		p.has1000_0_1 = true
		p.state = probeDone
		return sercos3.StepDone()

	default:
		return sercos3.StepDone()
	}
}
