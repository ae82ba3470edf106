// internal/models/segment.go
package models

// AnimeCharacter 解析器从叙事文本中抽取的角色信息（未入册的原始结果）
type AnimeCharacter struct {
	Name                   string `json:"name"`
	Description            string `json:"description"`
	Appearance             string `json:"appearance"`
	BodyType               string `json:"bodyType"`
	FacialFeatures         string `json:"facialFeatures"`
	ClothingStyle          string `json:"clothingStyle"`
	DistinguishingFeatures string `json:"distinguishingFeatures"`
	Personality            string `json:"personality"`
	Gender                 string `json:"gender"`
}

// Scene 单个分镜场景：一段台词/旁白及其生成产物
type Scene struct {
	SceneNumber       int    `json:"sceneNumber"`
	Character         string `json:"character"`
	Dialogue          string `json:"dialogue"`
	VisualDescription string `json:"visualDescription"`
	Atmosphere        string `json:"atmosphere"`
	Action            string `json:"action"`
	ImageURL          string `json:"imageUrl,omitempty"`
	AudioURL          string `json:"audioUrl,omitempty"`
}

// AnimeSegment 解析器输出的结构化叙事片段
type AnimeSegment struct {
	Characters  []AnimeCharacter `json:"characters"`
	Scenes      []Scene          `json:"scenes"`
	PlotSummary string           `json:"plotSummary"`
	Genre       string           `json:"genre"`
	Mood        string           `json:"mood"`
}
