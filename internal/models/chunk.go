package models

// Chunk is a retrieved segment of the processed text.
type Chunk struct {
	ChunkID    int
	Content    string
	Similarity float32
}

// Turn is one question and the answer generated for it.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
