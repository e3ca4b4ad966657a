package colors

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"sort"
	"strings"
	"sync"

	"github.com/b1naryth1ef/tessera/block"
)

type blockStateMultipart struct {
	Apply json.RawMessage `json:"apply"`
	When  json.RawMessage `json:"when"`
}

type blockStateVariant struct {
	Model string `json:"model"`
}

type blockStateInfo struct {
	Variants  map[string]json.RawMessage `json:"variants"`
	Multipart []blockStateMultipart      `json:"multipart"`
}

type modelInfo struct {
	Parent   string            `json:"parent"`
	Textures map[string]string `json:"textures"`
}

// Palette resolves block colours from the textures of a client jar. A block state is resolved
// once by averaging the texture its model shows on top, grass and foliage are then tinted from
// the biome colour maps.
type Palette struct {
	assets *Assets
	biomes *BiomePalette

	mu          sync.RWMutex
	blockStates map[string]blockStateInfo
	models      map[string]modelInfo
	textures    map[string]color.NRGBA
	colors      map[string]color.NRGBA
	missing     map[string]error

	climateMu sync.RWMutex
	climates  map[string]Climate

	grassColorMap   image.Image
	foliageColorMap image.Image
}

func NewPalette(assets *Assets) (*Palette, error) {
	grassColorMap, err := assets.LoadPNG("assets/minecraft/textures/colormap/grass.png")
	if err != nil {
		return nil, fmt.Errorf("failed to load grass colormap: %w", err)
	}
	foliageColorMap, err := assets.LoadPNG("assets/minecraft/textures/colormap/foliage.png")
	if err != nil {
		return nil, fmt.Errorf("failed to load foliage colormap: %w", err)
	}
	biomes, err := NewBiomePalette(BiomesFromAssets(assets))
	if err != nil {
		return nil, err
	}
	return &Palette{
		assets:          assets,
		biomes:          biomes,
		blockStates:     make(map[string]blockStateInfo),
		models:          make(map[string]modelInfo),
		textures:        make(map[string]color.NRGBA),
		colors:          make(map[string]color.NRGBA),
		missing:         make(map[string]error),
		climates:        make(map[string]Climate),
		grassColorMap:   grassColorMap,
		foliageColorMap: foliageColorMap,
	}, nil
}

func (p *Palette) BlockColor(state block.State, biome string) (color.NRGBA, bool) {
	key := state.Key()

	p.mu.RLock()
	clr, ok := p.colors[key]
	_, failed := p.missing[key]
	p.mu.RUnlock()

	if !ok {
		if failed {
			return color.NRGBA{}, false
		}

		p.mu.Lock()
		clr, ok = p.colors[key]
		if !ok {
			var err error
			clr, err = p.resolve(state)
			if err != nil {
				p.missing[key] = err
				p.mu.Unlock()
				return color.NRGBA{}, false
			}
			p.colors[key] = clr
		}
		p.mu.Unlock()
	}

	return p.tint(state, clr, biome), true
}

func (p *Palette) BiomeColor(biome string) color.NRGBA {
	c, _ := p.biomes.Color(biome)
	return c
}

// Missing returns the block states that could not be resolved and why.
func (p *Palette) Missing() map[string]error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	result := make(map[string]error, len(p.missing))
	for k, v := range p.missing {
		result[k] = v
	}
	return result
}

func (p *Palette) climate(biome string) Climate {
	p.climateMu.RLock()
	res, ok := p.climates[biome]
	p.climateMu.RUnlock()
	if ok {
		return res
	}

	p.climateMu.Lock()
	defer p.climateMu.Unlock()

	res = Climate{Temperature: 0.8, Downfall: 0.4}
	if _, name, ok := strings.Cut(biome, ":"); ok {
		var loaded Climate
		if err := p.assets.LoadJSON(fmt.Sprintf("data/minecraft/worldgen/biome/%s.json", name), &loaded); err == nil {
			res = loaded
		}
	}
	p.climates[biome] = res
	return res
}

func (p *Palette) tint(state block.State, clr color.NRGBA, biome string) color.NRGBA {
	switch {
	case block.IsGrass(state.Name):
		x, y := p.climate(biome).ColorMapCoords()
		return color.NRGBAModel.Convert(p.grassColorMap.At(x, y)).(color.NRGBA)
	case block.IsFoliage(state.Name):
		x, y := p.climate(biome).ColorMapCoords()
		return color.NRGBAModel.Convert(p.foliageColorMap.At(x, y)).(color.NRGBA)
	}
	return fixedTint(state, clr, biome)
}

// fixedTint covers the blocks whose tint does not come from a colour map.
func fixedTint(state block.State, clr color.NRGBA, biome string) color.NRGBA {
	switch {
	case state.Name == "minecraft:birch_leaves":
		return color.NRGBA{R: 0x80, G: 0xa7, B: 0x55, A: 255}
	case state.Name == "minecraft:spruce_leaves":
		return color.NRGBA{R: 0x61, G: 0x99, B: 0x61, A: 255}
	case block.IsWater(state.Name):
		return WaterColor(biome)
	}
	return clr
}

func (p *Palette) resolve(state block.State) (color.NRGBA, error) {
	info, err := p.blockState(state.Name)
	if err != nil {
		return color.NRGBA{}, err
	}

	props := block.ParseProperties(state.Properties)

	var modelName string
	if info.Multipart != nil {
		modelName, err = findMultipartModel(props, info.Multipart)
	} else {
		modelName, err = findVariantModel(props, info.Variants)
	}
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%s: %w", state, err)
	}

	textureName, err := p.topTexture(modelName)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%s: %w", state, err)
	}

	if clr, ok := p.textures[textureName]; ok {
		return clr, nil
	}
	texture, err := p.assets.LoadPNG(fmt.Sprintf("assets/minecraft/textures/%s.png", textureName))
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("failed to load texture image %s: %w", textureName, err)
	}
	clr := averageColor(texture)
	p.textures[textureName] = clr
	return clr, nil
}

func (p *Palette) blockState(name string) (blockStateInfo, error) {
	if info, ok := p.blockStates[name]; ok {
		return info, nil
	}
	var info blockStateInfo
	if err := p.assets.LoadJSON(fmt.Sprintf("assets/minecraft/blockstates/%s.json", stripNamespace(name)), &info); err != nil {
		return info, err
	}
	p.blockStates[name] = info
	return info, nil
}

func (p *Palette) model(name string) (modelInfo, error) {
	if info, ok := p.models[name]; ok {
		return info, nil
	}
	var info modelInfo
	if err := p.assets.LoadJSON(fmt.Sprintf("assets/minecraft/models/%s.json", stripNamespace(name)), &info); err != nil {
		return info, err
	}
	p.models[name] = info
	return info, nil
}

// topTexture follows the model's parents, merging texture variables child first, and picks the
// texture that is visible from above.
func (p *Palette) topTexture(modelName string) (string, error) {
	textures := make(map[string]string)
	name := modelName
	for depth := 0; name != "" && depth < 8; depth++ {
		info, err := p.model(name)
		if err != nil {
			return "", err
		}
		for k, v := range info.Textures {
			if _, ok := textures[k]; !ok {
				textures[k] = v
			}
		}
		name = info.Parent
	}

	var textureName string
	if len(textures) == 1 {
		for _, v := range textures {
			textureName = v
		}
	} else {
		for _, key := range []string{"top", "all", "texture", "end", "side", "particle"} {
			if v, ok := textures[key]; ok {
				textureName = v
				break
			}
		}
		if textureName == "" {
			keys := make([]string, 0, len(textures))
			for k := range textures {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			if len(keys) > 0 {
				textureName = textures[keys[0]]
			}
		}
	}

	for i := 0; strings.HasPrefix(textureName, "#") && i < 8; i++ {
		textureName = textures[strings.TrimPrefix(textureName, "#")]
	}
	if textureName == "" || strings.HasPrefix(textureName, "#") {
		return "", fmt.Errorf("no texture for model %s", modelName)
	}
	return stripNamespace(textureName), nil
}

// averageColor is the alpha weighted mean of every texel, with the mean alpha.
func averageColor(texture image.Image) color.NRGBA {
	bounds := texture.Bounds()
	var rr, gg, bb, aa, count float64
	for i := bounds.Min.X; i < bounds.Max.X; i++ {
		for j := bounds.Min.Y; j < bounds.Max.Y; j++ {
			r, g, b, a := texture.At(i, j).RGBA()
			rr += float64(r)
			gg += float64(g)
			bb += float64(b)
			aa += float64(a)
			count++
		}
	}
	if aa == 0 || count == 0 {
		return color.NRGBA{}
	}
	return color.NRGBA{
		R: uint8(rr*255/aa + 0.5),
		G: uint8(gg*255/aa + 0.5),
		B: uint8(bb*255/aa + 0.5),
		A: uint8(aa/count/257 + 0.5),
	}
}

func stripNamespace(name string) string {
	if _, rest, ok := strings.Cut(name, ":"); ok {
		return rest
	}
	return name
}

func decodeVariants(raw json.RawMessage) []blockStateVariant {
	var variants []blockStateVariant
	if err := json.Unmarshal(raw, &variants); err == nil {
		return variants
	}
	var v blockStateVariant
	if err := json.Unmarshal(raw, &v); err == nil {
		return []blockStateVariant{v}
	}
	return nil
}

func variantMatches(key string, properties map[string]string) bool {
	if key == "" {
		return true
	}
	for _, part := range strings.Split(key, ",") {
		k, v, _ := strings.Cut(part, "=")
		if properties[k] != v {
			return false
		}
	}
	return true
}

func findVariantModel(properties map[string]string, raw map[string]json.RawMessage) (string, error) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if len(raw) > 1 && !variantMatches(k, properties) {
			continue
		}
		variants := decodeVariants(raw[k])
		if len(variants) == 0 {
			return "", fmt.Errorf("invalid variant %q", k)
		}
		return variants[0].Model, nil
	}
	return "", fmt.Errorf("no variant matches %s", block.FormatProperties(properties))
}

type multipartWhen map[string]string

type multipartWhenOr struct {
	Or []multipartWhen `json:"OR"`
}

func (w multipartWhen) matches(properties map[string]string) bool {
	for k, v := range w {
		found := false
		for _, option := range strings.Split(v, "|") {
			if properties[k] == option {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func decodeMultipart(raw blockStateMultipart) ([]blockStateVariant, []multipartWhen, error) {
	applies := decodeVariants(raw.Apply)
	if len(applies) == 0 {
		return nil, nil, fmt.Errorf("invalid multipart apply %s", string(raw.Apply))
	}

	var whens []multipartWhen
	if len(raw.When) > 0 {
		var when map[string]json.RawMessage
		if err := json.Unmarshal(raw.When, &when); err != nil {
			return nil, nil, fmt.Errorf("invalid multipart when %s", string(raw.When))
		}
		if _, ok := when["OR"]; ok {
			var or multipartWhenOr
			if err := json.Unmarshal(raw.When, &or); err != nil {
				return nil, nil, fmt.Errorf("invalid multipart when %s", string(raw.When))
			}
			whens = append(whens, or.Or...)
		} else {
			var single multipartWhen
			if err := json.Unmarshal(raw.When, &single); err != nil {
				return nil, nil, fmt.Errorf("invalid multipart when %s", string(raw.When))
			}
			whens = append(whens, single)
		}
	}
	return applies, whens, nil
}

// findMultipartModel returns the first part that applies to the state, or the first part when
// none does.
func findMultipartModel(properties map[string]string, raw []blockStateMultipart) (string, error) {
	var fallback string
	for _, part := range raw {
		applies, whens, err := decodeMultipart(part)
		if err != nil {
			return "", err
		}
		if fallback == "" {
			fallback = applies[0].Model
		}
		if len(whens) == 0 {
			return applies[0].Model, nil
		}
		for _, when := range whens {
			if when.matches(properties) {
				return applies[0].Model, nil
			}
		}
	}
	if fallback == "" {
		return "", fmt.Errorf("empty multipart")
	}
	return fallback, nil
}
