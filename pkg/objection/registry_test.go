package objection

import (
	"bytes"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/objection-go/pkg/util/merr"
)

func TestRegistryDefaultOrder(t *testing.T) {
	reg := NewRegistry()
	codecs := reg.Codecs()
	require.Len(t, codecs, 18)

	assert.Equal(t, KindNested, kindOf(codecs[13]))
	assert.IsType(t, fieldCodec{}, codecs[14])
	assert.IsType(t, stringCodec{}, codecs[15])
	assert.IsType(t, collectionCodec{}, codecs[16])
	assert.IsType(t, mapCodec{}, codecs[17])

	c, err := reg.Resolve(reflect.TypeFor[Char]())
	require.NoError(t, err)
	assert.Equal(t, codecs[4], c)
}

func TestRegistryResolve(t *testing.T) {
	reg := NewRegistry()

	c, err := reg.Resolve(reflect.TypeFor[[]int32]())
	require.NoError(t, err)
	assert.Equal(t, KindArray, kindOf(c))

	_, err = reg.Resolve(reflect.TypeFor[[][]int32]())
	assert.ErrorIs(t, err, merr.ErrUnsupported)

	_, err = reg.Resolve(reflect.TypeFor[Point]())
	assert.ErrorIs(t, err, merr.ErrNoCodec)

	c, err = reg.Resolve(reflect.TypeFor[Set]())
	require.NoError(t, err)
	assert.Equal(t, KindCollection, kindOf(c))

	c, err = reg.Resolve(reflect.TypeFor[map[int]string]())
	require.NoError(t, err)
	assert.Equal(t, KindMap, kindOf(c))
}

func TestRegistryRegisterFirst(t *testing.T) {
	reg := NewRegistry().Register(celsiusCodec{})
	c, err := reg.Resolve(reflect.TypeFor[Celsius]())
	require.NoError(t, err)
	assert.Equal(t, KindPrimitive, kindOf(c))

	reg.RegisterFirst(celsiusCodec{})
	c, err = reg.Resolve(reflect.TypeFor[Celsius]())
	require.NoError(t, err)
	assert.Equal(t, KindCustom, kindOf(c))
}

func TestRegistryRegisterType(t *testing.T) {
	reg := NewRegistry().RegisterType(pointClass, nil)
	assert.Equal(t, pointClass, reg.Class("example.Point"))
	assert.Nil(t, reg.Class("example.Missing"))

	typ, ok := reg.lookupName("example.Point")
	require.True(t, ok)
	assert.Equal(t, reflect.TypeFor[*Point](), typ)

	typ, ok = reg.lookupName("char")
	require.True(t, ok)
	assert.Equal(t, reflect.TypeFor[Char](), typ)

	replacement := MustClass[Point]("example.Point", Serialize(), Modifiers(ModFinal))
	reg.RegisterType(replacement)
	assert.Equal(t, replacement, reg.Class("example.Point"))

	name, err := reg.typeName(reflect.TypeFor[*Point]())
	require.NoError(t, err)
	assert.Equal(t, "example.Point", name)

	_, err = reg.typeName(reflect.TypeFor[Celsius]())
	assert.ErrorIs(t, err, merr.ErrTypeNotResolvable)

	assert.ErrorIs(t, reg.RegisterName("", reflect.TypeFor[Celsius]()), merr.ErrParameterInvalid)
	assert.ErrorIs(t, reg.RegisterName("celsius", nil), merr.ErrParameterInvalid)
}

func TestRegistryConcurrentUse(t *testing.T) {
	reg := NewRegistry().RegisterType(pointClass)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var buf bytes.Buffer
			_, err := Encode(&Point{X: int32(i)}, &buf, reg)
			assert.NoError(t, err)
			td, err := Decode(&buf, reg)
			assert.NoError(t, err)
			out, err := Materialize(td)
			assert.NoError(t, err)
			assert.Equal(t, &Point{X: int32(i)}, out)
		}()
		reg.RegisterType(lineClass)
	}
	wg.Wait()
}

func TestLayoutCache(t *testing.T) {
	cache := NewLayoutCache()
	first := cache.layout(derivedClass)
	second := cache.layout(derivedClass)
	require.Len(t, first, 2)
	assert.Same(t, first[0], second[0])
	assert.Equal(t, 1, cache.Len())

	cache.layout(pointClass)
	assert.Equal(t, 2, cache.Len())
	cache.Evict(pointClass)
	assert.Equal(t, 1, cache.Len())
	cache.Purge()
	assert.Equal(t, 0, cache.Len())

	reg := NewRegistry(WithLayoutCache(cache)).RegisterType(pointClass)
	assert.Same(t, cache, reg.Cache())
	_, err := Describe(&Point{}, reg)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())
}

func TestClassValidation(t *testing.T) {
	_, err := NewClass[Point]("")
	assert.ErrorIs(t, err, merr.ErrParameterInvalid)

	_, err = NewClass[Point](string(bytes.Repeat([]byte("a"), 256)))
	assert.ErrorIs(t, err, merr.ErrParameterInvalid)

	_, err = NewClass[Point]("example.Dup", Fields(
		FieldOf("x", func(p *Point) int32 { return p.X }, func(p *Point, v int32) { p.X = v }),
		FieldOf("x", func(p *Point) int32 { return p.Y }, func(p *Point, v int32) { p.Y = v }),
	))
	assert.ErrorIs(t, err, merr.ErrParameterInvalid)

	_, err = NewClass[Point]("example.Foreign", Fields(
		FieldOf("id", func(b *Base) int64 { return b.ID }, func(b *Base, v int64) { b.ID = v }),
	))
	assert.ErrorIs(t, err, merr.ErrParameterInvalid)

	assert.True(t, shapeClass.IsAbstract())
	assert.False(t, shapeClass.HasDefaultConstructor())
	assert.True(t, markerClass.IsSerializable())
	assert.NotEqual(t, pointClass.StructuralID(), MustClass[Point]("example.Point", Modifiers(ModFinal)).StructuralID())
	assert.Equal(t, pointClass.StructuralID(), MustClass[Point]("example.Point").StructuralID())
}

func TestWireNames(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteName("abc"))
	require.NoError(t, w.WriteString("héllo"))
	assert.ErrorIs(t, w.WriteName(string(bytes.Repeat([]byte("a"), 256))), merr.ErrParameterInvalid)
	assert.Equal(t, int64(buf.Len()), w.Count())

	r := NewReader(&buf)
	name, err := r.ReadName()
	require.NoError(t, err)
	assert.Equal(t, "abc", string(name))
	_, err = r.ReadString(2)
	assert.ErrorIs(t, err, merr.ErrParameterTooLarge)
}

func TestHashSetRejectsUnhashable(t *testing.T) {
	set := NewHashSet[any]()
	assert.NotPanics(t, func() {
		assert.ErrorIs(t, set.Add([]int32{1}), merr.ErrInvalidValue)
		assert.False(t, set.Contains([]int32{1}))
	})
	assert.Equal(t, 0, set.Len())

	require.NoError(t, set.Add(int32(1)))
	assert.True(t, set.Contains(int32(1)))
}

func TestFieldSetterTypeMismatch(t *testing.T) {
	spec := FieldOf("x", func(p *Point) int32 { return p.X }, func(p *Point, v int32) { p.X = v })

	p := &Point{X: 5}
	assert.ErrorIs(t, spec.set(p, reflect.ValueOf("x")), merr.ErrInvalidValue)
	assert.Equal(t, int32(5), p.X)

	require.NoError(t, spec.set(p, reflect.Value{}))
	assert.Equal(t, int32(0), p.X)

	require.NoError(t, spec.set(p, reflect.ValueOf(int32(3))))
	assert.Equal(t, int32(3), p.X)
}
