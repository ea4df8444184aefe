package normalize

// portugueseStopWords is the Brazilian Portuguese stop word list used
// by Default. Entries are written with their accents; New folds them
// before matching.
var portugueseStopWords = []string{
	"a", "à", "ao", "aos", "as", "às", "até",
	"com", "como", "da", "das", "de", "dela", "dele", "deles",
	"depois", "do", "dos", "e", "ela", "elas", "ele", "eles",
	"em", "entre", "essa", "essas", "esse", "esses", "esta",
	"estas", "este", "estes", "eu", "foi", "foram", "isso", "isto",
	"já", "lhe", "lhes", "mais", "mas", "me", "mesmo", "meu",
	"meus", "minha", "minhas", "muito", "na", "nas", "nem", "no",
	"nos", "nós", "nossa", "nossas", "nosso", "nossos", "num",
	"numa", "o", "os", "ou", "para", "pela", "pelas", "pelo",
	"pelos", "por", "quais", "qual", "quando", "que", "quem",
	"se", "sem", "ser", "seu", "seus", "só", "sua", "suas",
	"também", "te", "tem", "têm", "teu", "teus", "tu", "tua",
	"tuas", "um", "uma", "você", "vocês", "vos",
}
