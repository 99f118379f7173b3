package xact

import (
	"fmt"
	"io"

	"xact-engine/internal/chunk"
)

// File identification.
const (
	ContentVersion = 46

	settingsMagic     = 0x46534758 // XGSF
	settingsToolVer   = 42
	soundBankMagic    = 0x4B424453 // SDBK
	soundBankToolVer  = 43
	waveBankMagic     = 0x444E4257 // WBND
	waveBankToolVer   = 44
	noParentCategory  = 0xFFFF
	unlimitedInstance = 0xFF
)

// Variable flag bits.
const (
	varPublic   = 0x01
	varReadOnly = 0x02
	varInstance = 0x04
	varReserved = 0x08
)

// Category visibility bits.
const (
	categoryBackgroundMusic = 0x01
	categoryPublic          = 0x02
)

// CategorySettings is a category as authored.
type CategorySettings struct {
	Name            string
	Parent          int
	Volume          float64
	VolumeByte      uint8
	MaxInstances    uint8
	MaxBehavior     MaxInstanceBehavior
	FadeInMS        uint16
	FadeOutMS       uint16
	FadeType        uint8
	BackgroundMusic bool
	Public          bool
}

// Settings is the parsed contents of an engine settings file.
type Settings struct {
	ContentVersion uint16
	Categories     []CategorySettings
	Variables      []*Variable
	RPCs           map[uint32]*RPC
	RPCOrder       []uint32
	DSPParameters  []DSPParameter
	DSPPresets     map[uint32]*DSPPreset
}

// ReadSettings parses an engine settings file.
func ReadSettings(r io.Reader) (*Settings, error) {
	cr, err := chunk.ReadAll(r)
	if err != nil {
		return nil, err
	}
	s, err := parseSettings(cr)
	if err != nil {
		return nil, formatError("engine settings", err)
	}
	return s, nil
}

func parseSettings(r *chunk.Reader) (*Settings, error) {
	r.Expect32("magic", settingsMagic)
	r.Expect16("content version", ContentVersion)
	r.Expect16("tool version", settingsToolVer)
	r.Skip(2) // crc
	r.Skip(8) // last modified
	r.Skip(1) // platform

	numCategories := int(r.U16())
	numVariables := int(r.U16())
	r.Skip(2 + 2) // key tables
	numRPCs := int(r.U16())
	numDSPPresets := int(r.U16())
	numDSPParameters := int(r.U16())

	categoryOffset := int64(r.U32())
	variableOffset := int64(r.U32())
	r.Skip(4 + 4 + 4 + 4) // unknown, category name index, unknown, variable name index
	categoryNameOffset := int64(r.U32())
	variableNameOffset := int64(r.U32())
	rpcOffset := int64(r.U32())
	dspPresetOffset := int64(r.U32())
	dspParameterOffset := int64(r.U32())
	if err := r.Err(); err != nil {
		return nil, err
	}

	s := &Settings{
		ContentVersion: ContentVersion,
		RPCs:           make(map[uint32]*RPC),
		DSPPresets:     make(map[uint32]*DSPPreset),
	}

	r.Seek(categoryNameOffset)
	categoryNames := make([]string, numCategories)
	for i := range categoryNames {
		categoryNames[i] = r.CString()
	}

	r.Seek(categoryOffset)
	for i := 0; i < numCategories; i++ {
		c := CategorySettings{Name: categoryNames[i]}
		c.MaxInstances = r.U8()
		c.FadeInMS = r.U16()
		c.FadeOutMS = r.U16()
		flags := r.U8()
		c.FadeType = flags & 0x07
		c.MaxBehavior = MaxInstanceBehavior(flags >> 3)
		parent := r.U16()
		c.Parent = -1
		if parent != noParentCategory {
			c.Parent = int(parent)
		}
		c.VolumeByte = r.U8()
		c.Volume = DecodeVolumeByte(c.VolumeByte)
		visibility := r.U8()
		c.BackgroundMusic = visibility&categoryBackgroundMusic != 0
		c.Public = visibility&categoryPublic != 0
		s.Categories = append(s.Categories, c)
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("categories: %w", err)
	}
	for i, c := range s.Categories {
		if c.Parent >= numCategories || c.Parent == i {
			return nil, formatf("category %q has invalid parent %d", c.Name, c.Parent)
		}
	}

	r.Seek(variableNameOffset)
	variableNames := make([]string, numVariables)
	for i := range variableNames {
		variableNames[i] = r.CString()
	}

	r.Seek(variableOffset)
	for i := 0; i < numVariables; i++ {
		flags := r.U8()
		initial := float64(r.F32())
		lo := float64(r.F32())
		hi := float64(r.F32())
		s.Variables = append(s.Variables, NewVariable(
			variableNames[i],
			flags&varPublic != 0,
			flags&varReadOnly != 0,
			flags&varInstance == 0,
			flags&varReserved != 0,
			initial, lo, hi,
		))
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("variables: %w", err)
	}
	if findVariable(s.Variables, "Volume") == nil {
		s.Variables = append(s.Variables, NewVariable("Volume", true, false, true, false, 1, 0, 1))
	}

	r.Seek(rpcOffset)
	for i := 0; i < numRPCs; i++ {
		code := uint32(r.Pos())
		variable := int(r.U16())
		numPoints := int(r.U8())
		param := RPCParameter(r.U16())
		points := make([]RPCPoint, numPoints)
		for j := range points {
			points[j].X = float64(r.F32())
			points[j].Y = float64(r.F32())
			points[j].Type = RPCPointType(r.U8())
		}
		if r.Err() != nil {
			break
		}
		if variable >= numVariables {
			return nil, formatf("rpc at %d references variable %d of %d", code, variable, numVariables)
		}
		s.RPCs[code] = &RPC{Code: code, Variable: variableNames[variable], Parameter: param, Points: points}
		s.RPCOrder = append(s.RPCOrder, code)
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("rpc curves: %w", err)
	}

	r.Seek(dspParameterOffset)
	for i := 0; i < numDSPParameters; i++ {
		p := DSPParameter{Type: r.U8()}
		p.Value = float64(r.F32())
		p.Min = float64(r.F32())
		p.Max = float64(r.F32())
		r.Skip(2)
		s.DSPParameters = append(s.DSPParameters, p)
	}

	r.Seek(dspPresetOffset)
	next := 0
	for i := 0; i < numDSPPresets; i++ {
		code := uint32(r.Pos())
		global := r.U8() == 1
		n := int(r.U32())
		if r.Err() != nil {
			break
		}
		if next+n > len(s.DSPParameters) {
			return nil, formatf("dsp preset at %d claims %d parameters, %d left", code, n, len(s.DSPParameters)-next)
		}
		s.DSPPresets[code] = &DSPPreset{Code: code, IsGlobal: global, Parameters: s.DSPParameters[next : next+n]}
		next += n
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("dsp tables: %w", err)
	}
	return s, nil
}
