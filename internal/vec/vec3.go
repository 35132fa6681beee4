package vec

import "math"

// Vec3 представляет трехмерный вектор с плавающими координатами.
// Используется для позиций, скоростей и поворотов (в поворотах значимой
// является компонента Y — рыскание корабля).
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// Mul умножает вектор на скаляр
func (v Vec3) Mul(k float64) Vec3 {
	return Vec3{
		X: v.X * k,
		Y: v.Y * k,
		Z: v.Z * k,
	}
}

// DistanceTo возвращает евклидово расстояние до другого вектора
func (v Vec3) DistanceTo(other Vec3) float64 {
	dx := v.X - other.X
	dy := v.Y - other.Y
	dz := v.Z - other.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Equals проверяет равенство векторов
func (v Vec3) Equals(other Vec3) bool {
	return v.X == other.X && v.Y == other.Y && v.Z == other.Z
}
