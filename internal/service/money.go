package service

import "math/big"

// mulDiv 计算 a*b/c 并四舍五入 (远离零), 中间结果使用大整数避免溢出
func mulDiv(a, b, c int64) int64 {
	if c == 0 {
		return 0
	}
	num := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	return roundQuo(num, big.NewInt(c))
}

// roundQuo num/den 四舍五入 (远离零)
func roundQuo(num, den *big.Int) int64 {
	neg := (num.Sign() < 0) != (den.Sign() < 0)
	n := new(big.Int).Abs(num)
	d := new(big.Int).Abs(den)

	q, r := new(big.Int).QuoRem(n, d, new(big.Int))
	// r*2 >= den 时进位
	if r.Lsh(r, 1).Cmp(d) >= 0 {
		q.Add(q, big.NewInt(1))
	}
	if neg {
		q.Neg(q)
	}
	return q.Int64()
}

// applyBasisPoints 金额乘以基点税率
func applyBasisPoints(amount int64, bp int) int64 {
	return mulDiv(amount, int64(bp), 10_000)
}

// convertMinor 在两种货币的最小单位之间换算
// rate 为每 1 基准货币对应的该货币数量 (放大 RateScale 倍), scale 为小数位数
func convertMinor(amount, rateFrom, rateTo int64, scaleFrom, scaleTo int) int64 {
	if rateFrom == 0 {
		return 0
	}
	num := new(big.Int).Mul(big.NewInt(amount), big.NewInt(rateTo))
	den := big.NewInt(rateFrom)
	if scaleTo > scaleFrom {
		num.Mul(num, pow10(scaleTo-scaleFrom))
	} else if scaleFrom > scaleTo {
		den.Mul(den, pow10(scaleFrom-scaleTo))
	}
	return roundQuo(num, den)
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
