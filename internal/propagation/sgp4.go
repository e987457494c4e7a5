package propagation

import "math"

// WGS-72 constants, as used by the SGP4 element sets NORAD distributes.
const (
	earthRadius = 6378.135  // km
	earthMu     = 398600.8  // km³/s²
	j2          = 0.001082616
	j3          = -0.00000253881
	j4          = -0.00000165597
	j3oj2       = j3 / j2

	twoPi = 2 * math.Pi
	x2o3  = 2.0 / 3.0

	minutesPerDay = 1440.0

	// Orbits at or above this period get the deep-space treatment.
	deepSpacePeriod = 225.0 // minutes
)

var (
	xke       = 60.0 / math.Sqrt(earthRadius*earthRadius*earthRadius/earthMu)
	vkmPerSec = earthRadius * xke / 60.0
)

// sgp4Model holds the quantities fixed by initialisation. Nothing in it is
// written after newModel returns.
type sgp4Model struct {
	model Model

	// Mean elements at epoch (radians, rad/min), with no un-Kozai'd.
	bstar, ecco, argpo, inclo, mo, no, nodeo float64

	isimp                                   bool
	aycof, con41, cc1, cc4, cc5, d2, d3, d4 float64
	delmo, eta, argpdot, omgcof, sinmao     float64
	t2cof, t3cof, t4cof, t5cof              float64
	x1mth2, x7thm1, mdot, nodedot, xlcof    float64
	xmcof, nodecf                           float64

	deep *deepSpace
}

// initError codes mirror the failure modes of the reference model.
type initError int

const (
	errNone initError = iota
	errEccentricity
	errMeanMotion
	errPerturbedEccentricity
	errSemiLatusRectum
	errDecayed
)

func (e initError) reason() Reason {
	switch e {
	case errEccentricity, errPerturbedEccentricity:
		return ReasonEccentricity
	case errMeanMotion:
		return ReasonMeanMotion
	case errSemiLatusRectum:
		return ReasonSemiLatusRectum
	case errDecayed:
		return ReasonDecayed
	}
	return ReasonInvalidElements
}

// meanElements is the input to newModel, already converted to radians
// and radians per minute. epoch is days since 1949 December 31 00:00 UT.
type meanElements struct {
	epoch                                    float64
	bstar, ecco, argpo, inclo, mo, no, nodeo float64
}

// newModel runs SGP4 initialisation.
func newModel(el meanElements) (*sgp4Model, initError) {
	s := &sgp4Model{
		bstar: el.bstar,
		ecco:  el.ecco,
		argpo: el.argpo,
		inclo: el.inclo,
		mo:    el.mo,
		no:    el.no,
		nodeo: el.nodeo,
	}

	ss := 78.0/earthRadius + 1.0
	qzms2t := math.Pow((120.0-78.0)/earthRadius, 4)

	// Recover the original mean motion and semi-major axis from the
	// Kozai mean motion in the element set.
	eccsq := s.ecco * s.ecco
	omeosq := 1.0 - eccsq
	rteosq := math.Sqrt(omeosq)
	cosio := math.Cos(s.inclo)
	cosio2 := cosio * cosio

	ak := math.Pow(xke/s.no, x2o3)
	d1 := 0.75 * j2 * (3.0*cosio2 - 1.0) / (rteosq * omeosq)
	del := d1 / (ak * ak)
	adel := ak * (1.0 - del*del - del*(1.0/3.0+134.0*del*del/81.0))
	del = d1 / (adel * adel)
	s.no = s.no / (1.0 + del)

	ao := math.Pow(xke/s.no, x2o3)
	sinio := math.Sin(s.inclo)
	po := ao * omeosq
	con42 := 1.0 - 5.0*cosio2
	s.con41 = -con42 - cosio2 - cosio2
	posq := po * po
	rp := ao * (1.0 - s.ecco)
	gsto := greenwichSidereal(el.epoch + sgp4Epoch)

	s.isimp = rp < 220.0/earthRadius+1.0

	sfour := ss
	qzms24 := qzms2t
	perige := (rp - 1.0) * earthRadius
	if perige < 156.0 {
		sfour = perige - 78.0
		if perige < 98.0 {
			sfour = 20.0
		}
		qzms24 = math.Pow((120.0-sfour)/earthRadius, 4)
		sfour = sfour/earthRadius + 1.0
	}

	pinvsq := 1.0 / posq
	tsi := 1.0 / (ao - sfour)
	s.eta = ao * s.ecco * tsi
	etasq := s.eta * s.eta
	eeta := s.ecco * s.eta
	psisq := math.Abs(1.0 - etasq)
	coef := qzms24 * math.Pow(tsi, 4)
	coef1 := coef / math.Pow(psisq, 3.5)
	cc2 := coef1 * s.no * (ao*(1.0+1.5*etasq+eeta*(4.0+etasq)) +
		0.375*j2*tsi/psisq*s.con41*(8.0+3.0*etasq*(8.0+etasq)))
	s.cc1 = s.bstar * cc2
	cc3 := 0.0
	if s.ecco > 1.0e-4 {
		cc3 = -2.0 * coef * tsi * j3oj2 * s.no * sinio / s.ecco
	}
	s.x1mth2 = 1.0 - cosio2
	s.cc4 = 2.0 * s.no * coef1 * ao * omeosq *
		(s.eta*(2.0+0.5*etasq) + s.ecco*(0.5+2.0*etasq) -
			j2*tsi/(ao*psisq)*(-3.0*s.con41*(1.0-2.0*eeta+etasq*(1.5-0.5*eeta))+
				0.75*s.x1mth2*(2.0*etasq-eeta*(1.0+etasq))*math.Cos(2.0*s.argpo)))
	s.cc5 = 2.0 * coef1 * ao * omeosq * (1.0 + 2.75*(etasq+eeta) + eeta*etasq)

	cosio4 := cosio2 * cosio2
	temp1 := 1.5 * j2 * pinvsq * s.no
	temp2 := 0.5 * temp1 * j2 * pinvsq
	temp3 := -0.46875 * j4 * pinvsq * pinvsq * s.no
	s.mdot = s.no + 0.5*temp1*rteosq*s.con41 + 0.0625*temp2*rteosq*(13.0-78.0*cosio2+137.0*cosio4)
	s.argpdot = -0.5*temp1*con42 + 0.0625*temp2*(7.0-114.0*cosio2+395.0*cosio4) +
		temp3*(3.0-36.0*cosio2+49.0*cosio4)
	xhdot1 := -temp1 * cosio
	s.nodedot = xhdot1 + (0.5*temp2*(4.0-19.0*cosio2)+2.0*temp3*(3.0-7.0*cosio2))*cosio
	xpidot := s.argpdot + s.nodedot
	s.omgcof = s.bstar * cc3 * math.Cos(s.argpo)
	if s.ecco > 1.0e-4 {
		s.xmcof = -x2o3 * coef * s.bstar / eeta
	}
	s.nodecf = 3.5 * omeosq * xhdot1 * s.cc1
	s.t2cof = 1.5 * s.cc1
	s.xlcof = longPeriodCoefficient(sinio, cosio)
	s.aycof = -0.5 * j3oj2 * sinio
	s.delmo = math.Pow(1.0+s.eta*math.Cos(s.mo), 3)
	s.sinmao = math.Sin(s.mo)
	s.x7thm1 = 7.0*cosio2 - 1.0

	if twoPi/s.no >= deepSpacePeriod {
		s.model = DeepSpace
		s.isimp = true
		s.deep = newDeepSpace(deepInput{
			epoch:   el.epoch,
			ecco:    s.ecco,
			eccsq:   eccsq,
			argpo:   s.argpo,
			inclo:   s.inclo,
			nodeo:   s.nodeo,
			mo:      s.mo,
			no:      s.no,
			gsto:    gsto,
			mdot:    s.mdot,
			nodedot: s.nodedot,
			xpidot:  xpidot,
			argpdot: s.argpdot,
		})
	}

	if !s.isimp {
		cc1sq := s.cc1 * s.cc1
		s.d2 = 4.0 * ao * tsi * cc1sq
		temp := s.d2 * tsi * s.cc1 / 3.0
		s.d3 = (17.0*ao + sfour) * temp
		s.d4 = 0.5 * temp * ao * tsi * (221.0*ao + 31.0*sfour) * s.cc1
		s.t3cof = s.d2 + 2.0*cc1sq
		s.t4cof = 0.25 * (3.0*s.d3 + s.cc1*(12.0*s.d2+10.0*cc1sq))
		s.t5cof = 0.2 * (3.0*s.d4 + 12.0*s.cc1*s.d3 + 6.0*s.d2*s.d2 + 15.0*cc1sq*(2.0*s.d2+cc1sq))
	}

	if _, _, code := s.propagate(0); code != errNone {
		return nil, code
	}
	return s, errNone
}

func longPeriodCoefficient(sini, cosi float64) float64 {
	const temp4 = 1.5e-12
	if math.Abs(cosi+1.0) > temp4 {
		return -0.25 * j3oj2 * sini * (3.0 + 5.0*cosi) / (1.0 + cosi)
	}
	return -0.25 * j3oj2 * sini * (3.0 + 5.0*cosi) / temp4
}

// propagate evaluates the model tsince minutes from epoch, returning TEME
// position (km) and velocity (km/s).
func (s *sgp4Model) propagate(tsince float64) (r, v [3]float64, code initError) {
	t := tsince

	// Secular gravity and atmospheric drag.
	xmdf := s.mo + s.mdot*t
	argpdf := s.argpo + s.argpdot*t
	nodedf := s.nodeo + s.nodedot*t
	argpm := argpdf
	mm := xmdf
	t2 := t * t
	nodem := nodedf + s.nodecf*t2
	tempa := 1.0 - s.cc1*t
	tempe := s.bstar * s.cc4 * t
	templ := s.t2cof * t2

	if !s.isimp {
		delomg := s.omgcof * t
		delm := s.xmcof * (math.Pow(1.0+s.eta*math.Cos(xmdf), 3) - s.delmo)
		temp := delomg + delm
		mm = xmdf + temp
		argpm = argpdf - temp
		t3 := t2 * t
		t4 := t3 * t
		tempa = tempa - s.d2*t2 - s.d3*t3 - s.d4*t4
		tempe = tempe + s.bstar*s.cc5*(math.Sin(mm)-s.sinmao)
		templ = templ + s.t3cof*t3 + t4*(s.t4cof+t*s.t5cof)
	}

	nm := s.no
	em := s.ecco
	inclm := s.inclo
	if s.model == DeepSpace {
		ds := s.deep.secular(t, em, argpm, inclm, mm, nodem)
		em, argpm, inclm, mm, nodem, nm = ds.em, ds.argpm, ds.inclm, ds.mm, ds.nodem, ds.nm
	}

	if nm <= 0.0 {
		return r, v, errMeanMotion
	}
	am := math.Pow(xke/nm, x2o3) * tempa * tempa
	nm = xke / math.Pow(am, 1.5)
	em -= tempe

	if em >= 1.0 || em < -0.001 {
		return r, v, errEccentricity
	}
	if em < 1.0e-6 {
		em = 1.0e-6
	}
	mm += s.no * templ
	xlm := mm + argpm + nodem

	nodem = math.Mod(nodem, twoPi)
	argpm = math.Mod(argpm, twoPi)
	xlm = math.Mod(xlm, twoPi)
	mm = math.Mod(xlm-argpm-nodem, twoPi)

	// Lunar-solar periodics.
	ep := em
	xincp := inclm
	argpp := argpm
	nodep := nodem
	mp := mm
	sinip := math.Sin(inclm)
	cosip := math.Cos(inclm)
	aycof, xlcof := s.aycof, s.xlcof
	con41, x1mth2, x7thm1 := s.con41, s.x1mth2, s.x7thm1

	if s.model == DeepSpace {
		ep, xincp, nodep, argpp, mp = s.deep.periodics(t, ep, xincp, nodep, argpp, mp)
		if xincp < 0.0 {
			xincp = -xincp
			nodep += math.Pi
			argpp -= math.Pi
		}
		if ep < 0.0 || ep > 1.0 {
			return r, v, errPerturbedEccentricity
		}

		sinip = math.Sin(xincp)
		cosip = math.Cos(xincp)
		aycof = -0.5 * j3oj2 * sinip
		xlcof = longPeriodCoefficient(sinip, cosip)

		cosisq := cosip * cosip
		con41 = 3.0*cosisq - 1.0
		x1mth2 = 1.0 - cosisq
		x7thm1 = 7.0*cosisq - 1.0
	}

	// Long-period periodics.
	axnl := ep * math.Cos(argpp)
	temp := 1.0 / (am * (1.0 - ep*ep))
	aynl := ep*math.Sin(argpp) + temp*aycof
	xl := mp + argpp + nodep + temp*xlcof*axnl

	// Kepler's equation.
	u := math.Mod(xl-nodep, twoPi)
	eo1 := u
	tem5 := 9999.9
	var sineo1, coseo1 float64
	for ktr := 1; math.Abs(tem5) >= 1.0e-12 && ktr <= 10; ktr++ {
		sineo1 = math.Sin(eo1)
		coseo1 = math.Cos(eo1)
		tem5 = 1.0 - coseo1*axnl - sineo1*aynl
		tem5 = (u - aynl*coseo1 + axnl*sineo1 - eo1) / tem5
		if math.Abs(tem5) >= 0.95 {
			tem5 = math.Copysign(0.95, tem5)
		}
		eo1 += tem5
	}

	// Short-period preliminary quantities.
	ecose := axnl*coseo1 + aynl*sineo1
	esine := axnl*sineo1 - aynl*coseo1
	el2 := axnl*axnl + aynl*aynl
	pl := am * (1.0 - el2)
	if pl < 0.0 {
		return r, v, errSemiLatusRectum
	}

	rl := am * (1.0 - ecose)
	rdotl := math.Sqrt(am) * esine / rl
	rvdotl := math.Sqrt(pl) / rl
	betal := math.Sqrt(1.0 - el2)
	temp = esine / (1.0 + betal)
	sinu := am / rl * (sineo1 - aynl - axnl*temp)
	cosu := am / rl * (coseo1 - axnl + aynl*temp)
	su := math.Atan2(sinu, cosu)
	sin2u := (cosu + cosu) * sinu
	cos2u := 1.0 - 2.0*sinu*sinu
	temp = 1.0 / pl
	temp1 := 0.5 * j2 * temp
	temp2 := temp1 * temp

	// Short-period periodics.
	mrt := rl*(1.0-1.5*temp2*betal*con41) + 0.5*temp1*x1mth2*cos2u
	su -= 0.25 * temp2 * x7thm1 * sin2u
	xnode := nodep + 1.5*temp2*cosip*sin2u
	xinc := xincp + 1.5*temp2*cosip*sinip*cos2u
	mvt := rdotl - nm*temp1*x1mth2*sin2u/xke
	rvdot := rvdotl + nm*temp1*(x1mth2*cos2u+1.5*con41)/xke

	// Orientation vectors.
	sinsu, cossu := math.Sincos(su)
	snod, cnod := math.Sincos(xnode)
	sini, cosi := math.Sincos(xinc)
	xmx := -snod * cosi
	xmy := cnod * cosi
	ux := xmx*sinsu + cnod*cossu
	uy := xmy*sinsu + snod*cossu
	uz := sini * sinsu
	vx := xmx*cossu - cnod*sinsu
	vy := xmy*cossu - snod*sinsu
	vz := sini * cossu

	r = [3]float64{mrt * ux * earthRadius, mrt * uy * earthRadius, mrt * uz * earthRadius}
	v = [3]float64{
		(mvt*ux + rvdot*vx) * vkmPerSec,
		(mvt*uy + rvdot*vy) * vkmPerSec,
		(mvt*uz + rvdot*vz) * vkmPerSec,
	}

	if mrt < 1.0 {
		return r, v, errDecayed
	}
	return r, v, errNone
}

// greenwichSidereal is the IAU-82 sidereal angle (radians) used to anchor
// the resonance terms at epoch.
func greenwichSidereal(jdut1 float64) float64 {
	tut1 := (jdut1 - 2451545.0) / 36525.0
	temp := -6.2e-6*tut1*tut1*tut1 + 0.093104*tut1*tut1 +
		(876600.0*3600+8640184.812866)*tut1 + 67310.54841
	temp = math.Mod(temp*(math.Pi/180.0)/240.0, twoPi)
	if temp < 0.0 {
		temp += twoPi
	}
	return temp
}
