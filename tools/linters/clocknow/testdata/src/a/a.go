package a

import (
	"time"
	stdtime "time"
)

func bad() {
	_ = time.Now() // want "time.Now\\(\\) should be followed by .UTC\\(\\) for timezone consistency"
}

func good() {
	_ = time.Now().UTC()
}

func chainingGood() {
	_ = time.Now().UTC().Format(time.RFC3339)
}

func aliasBad() {
	_ = stdtime.Now() // want "time.Now\\(\\) should be followed by .UTC\\(\\) for timezone consistency"
}

func nolintGeneral() {
	//nolint
	_ = time.Now()
}

func nolintSpecific() {
	_ = time.Now() //nolint:clocknow
}

func nolintList() {
	_ = time.Now() //nolint:errcheck,clocknow
}

func nolintOtherLinter() {
	_ = time.Now() //nolint:otherlinter // want "time.Now\\(\\) should be followed by .UTC\\(\\) for timezone consistency"
}

type clock struct{}

func (clock) Now() time.Time { return time.Time{} }

func methodNamedNow() {
	var c clock
	_ = c.Now()
}
