package smp

// assoc is the association model, including which side types the passkey.
type assoc byte

const (
	assocJustWorks assoc = iota
	assocPasskeyInitInput
	assocPasskeyRespInput
	assocPasskeyBothInput
	assocNumericComparison
	assocOOB
)

const (
	jw  = assocJustWorks
	pki = assocPasskeyInitInput
	pkr = assocPasskeyRespInput
	pkb = assocPasskeyBothInput
	nc  = assocNumericComparison
)

// Tables are indexed [responder io capability][initiator io capability]
// [Vol 3, Part H, 2.3.5.1, Table 2.8].
var legacyMethods = [5][5]assoc{
	{jw, jw, pki, jw, pki},
	{jw, jw, pki, jw, pki},
	{pkr, pkr, pkb, jw, pkr},
	{jw, jw, jw, jw, jw},
	{pkr, pkr, pki, jw, pkr},
}

var scMethods = [5][5]assoc{
	{jw, jw, pki, jw, pki},
	{jw, nc, pki, jw, nc},
	{pkr, pkr, pkb, jw, pkr},
	{jw, jw, jw, jw, jw},
	{pkr, nc, pki, jw, nc},
}

func (a assoc) method() Method {
	switch a {
	case assocPasskeyInitInput, assocPasskeyRespInput, assocPasskeyBothInput:
		return PasskeyEntry
	case assocNumericComparison:
		return NumericComparison
	case assocOOB:
		return OutOfBand
	default:
		return JustWorks
	}
}

// inputs reports whether the device in role r types the passkey.
func (a assoc) inputs(r Role) bool {
	switch a {
	case assocPasskeyBothInput:
		return true
	case assocPasskeyInitInput:
		return r == Initiator
	case assocPasskeyRespInput:
		return r == Responder
	}
	return false
}

// displays reports whether the device in role r generates and shows the passkey.
func (a assoc) displays(r Role) bool {
	return a.method() == PasskeyEntry && !a.inputs(r)
}

// selectAssoc picks the association model from the two feature sets.
func selectAssoc(preq, pres SmpConfig, sc bool) assoc {
	if sc {
		if preq.OobFlag == oobDataPreset || pres.OobFlag == oobDataPreset {
			return assocOOB
		}
	} else if preq.OobFlag == oobDataPreset && pres.OobFlag == oobDataPreset {
		return assocOOB
	}

	if !preq.mitm() && !pres.mitm() {
		return assocJustWorks
	}

	if preq.IoCap > IoCapKeyboardDisplay || pres.IoCap > IoCapKeyboardDisplay {
		return assocJustWorks
	}

	if sc {
		return scMethods[pres.IoCap][preq.IoCap]
	}
	return legacyMethods[pres.IoCap][preq.IoCap]
}
