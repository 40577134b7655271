package domain

// ArtifactKind 一時ファイルの種類
type ArtifactKind string

const (
	ArtifactAudio ArtifactKind = "audio"
	ArtifactCard  ArtifactKind = "card"
)

// ArtifactStore 音声と画像カードの一時保存先
type ArtifactStore interface {
	// Put 保存してIDを返す
	Put(kind ArtifactKind, data []byte, contentType, ext string) (string, error)

	// ReadAndDelete 内容を読み出して削除する
	ReadAndDelete(id string) ([]byte, error)
}

// CardRenderer 要約テキストからPNG画像カードを作る
type CardRenderer interface {
	// Render PNGと、フォント代替時の警告文を返す
	Render(text string) ([]byte, string, error)
}
