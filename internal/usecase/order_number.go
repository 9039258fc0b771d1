package usecase

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// "CC" + unixミリ秒の下6桁 + 乱数3桁
type timeRandomOrderNumber struct{}

func NewOrderNumberGenerator() OrderNumberGenerator {
	return timeRandomOrderNumber{}
}

func (timeRandomOrderNumber) Next(now time.Time) string {
	return fmt.Sprintf("CC%06d%03d", now.UnixMilli()%1_000_000, rand.IntN(1000))
}
