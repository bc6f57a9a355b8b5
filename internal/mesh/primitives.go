package mesh

import "math"

// Box returns a closed box with the given edge lengths. When centered is false
// the minimum corner sits at the origin.
func Box(size Vec3, centered bool, provenance Provenance) *Mesh {
	var origin Vec3
	if centered {
		origin = size.Scale(-0.5)
	}
	vs := make([]Vec3, 8)
	for i := range vs {
		vs[i] = Vec3{
			origin[0] + float64(i&1)*size[0],
			origin[1] + float64((i>>1)&1)*size[1],
			origin[2] + float64((i>>2)&1)*size[2],
		}
	}
	fs := []Face{
		{0, 2, 3}, {0, 3, 1}, // -z
		{4, 5, 7}, {4, 7, 6}, // +z
		{0, 1, 5}, {0, 5, 4}, // -y
		{2, 6, 7}, {2, 7, 3}, // +y
		{0, 4, 6}, {0, 6, 2}, // -x
		{1, 3, 7}, {1, 7, 5}, // +x
	}
	return New(vs, fs, provenance)
}

// Cylinder returns a closed faceted cylinder along +z.
func Cylinder(radius, height float64, segments int, centered bool, provenance Provenance) *Mesh {
	if segments < 3 {
		segments = 3
	}
	z0, z1 := 0.0, height
	if centered {
		z0, z1 = -height/2, height/2
	}
	s := segments
	vs := make([]Vec3, 0, 2*s+2)
	for _, z := range []float64{z0, z1} {
		for i := 0; i < s; i++ {
			a := 2 * math.Pi * float64(i) / float64(s)
			vs = append(vs, Vec3{radius * math.Cos(a), radius * math.Sin(a), z})
		}
	}
	cb, ct := 2*s, 2*s+1
	vs = append(vs, Vec3{0, 0, z0}, Vec3{0, 0, z1})

	fs := make([]Face, 0, 4*s)
	for i := 0; i < s; i++ {
		j := (i + 1) % s
		fs = append(fs,
			Face{i, j, s + j}, Face{i, s + j, s + i},
			Face{ct, s + i, s + j},
			Face{cb, j, i},
		)
	}
	return New(vs, fs, provenance)
}

// Sphere returns a closed UV sphere centered at the origin.
func Sphere(radius float64, segments int, provenance Provenance) *Mesh {
	if segments < 4 {
		segments = 4
	}
	stacks := segments / 2
	if stacks < 2 {
		stacks = 2
	}
	s := segments
	vs := []Vec3{{0, 0, radius}, {0, 0, -radius}}
	for k := 1; k < stacks; k++ {
		phi := math.Pi * float64(k) / float64(stacks)
		z := radius * math.Cos(phi)
		r := radius * math.Sin(phi)
		for i := 0; i < s; i++ {
			a := 2 * math.Pi * float64(i) / float64(s)
			vs = append(vs, Vec3{r * math.Cos(a), r * math.Sin(a), z})
		}
	}
	ring := func(k, i int) int { return 2 + (k-1)*s + i%s }

	var fs []Face
	for i := 0; i < s; i++ {
		fs = append(fs, Face{0, ring(1, i), ring(1, i+1)})
	}
	for k := 1; k < stacks-1; k++ {
		for i := 0; i < s; i++ {
			a, b := ring(k, i), ring(k, i+1)
			c, d := ring(k+1, i+1), ring(k+1, i)
			fs = append(fs, Face{d, c, b}, Face{d, b, a})
		}
	}
	for i := 0; i < s; i++ {
		fs = append(fs, Face{1, ring(stacks-1, i+1), ring(stacks-1, i)})
	}
	return New(vs, fs, provenance)
}
