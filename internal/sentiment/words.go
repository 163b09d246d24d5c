package sentiment

var builtinIntensifiers = map[string]float64{
	"very":       1.3,
	"really":     1.3,
	"so":         1.3,
	"extremely":  1.5,
	"incredibly": 1.5,
	"totally":    1.3,
	"too":        1.2,
	"super":      1.3,
	"deeply":     1.4,
	"quite":      1.1,
	"romba":      1.3,
	"slightly":   0.6,
	"somewhat":   0.7,
	"bit":        0.7,
}

var builtinNegators = map[string]bool{
	"not":     true,
	"no":      true,
	"never":   true,
	"don't":   true,
	"dont":    true,
	"doesn't": true,
	"isn't":   true,
	"wasn't":  true,
	"aren't":  true,
	"can't":   true,
	"cannot":  true,
	"won't":   true,
	"didn't":  true,
	"hardly":  true,
	"nothing": true,
	"illa":    true,
}

var builtinWords = map[string]wordScore{
	// positive
	"good":       {0.70, 0.60},
	"great":      {0.80, 0.75},
	"happy":      {0.80, 1.00},
	"glad":       {0.50, 1.00},
	"joy":        {0.80, 0.90},
	"excited":    {0.60, 0.80},
	"wonderful":  {1.00, 1.00},
	"amazing":    {0.60, 0.90},
	"awesome":    {1.00, 1.00},
	"love":       {0.50, 0.60},
	"loved":      {0.70, 0.80},
	"grateful":   {0.70, 0.80},
	"thankful":   {0.60, 0.80},
	"thanks":     {0.20, 0.20},
	"calm":       {0.30, 0.75},
	"relaxed":    {0.40, 0.60},
	"peaceful":   {0.50, 0.70},
	"proud":      {0.80, 1.00},
	"better":     {0.50, 0.50},
	"best":       {1.00, 0.30},
	"fine":       {0.40, 0.50},
	"okay":       {0.20, 0.50},
	"ok":         {0.20, 0.50},
	"nice":       {0.60, 1.00},
	"hopeful":    {0.60, 0.80},
	"cheerful":   {0.70, 0.90},
	"delighted":  {0.90, 1.00},
	"confident":  {0.50, 0.70},
	"motivated":  {0.50, 0.60},
	"blessed":    {0.60, 0.80},
	"fun":        {0.30, 0.20},
	"enjoy":      {0.40, 0.50},
	"enjoyed":    {0.50, 0.50},
	"santhosham": {0.80, 1.00},
	"jolly":      {0.60, 0.80},
	"semma":      {0.60, 0.80},

	// negative
	"bad":        {-0.70, 0.67},
	"sad":        {-0.50, 1.00},
	"unhappy":    {-0.60, 0.90},
	"terrible":   {-1.00, 1.00},
	"awful":      {-1.00, 1.00},
	"horrible":   {-1.00, 1.00},
	"worst":      {-1.00, 1.00},
	"hate":       {-0.80, 0.90},
	"angry":      {-0.50, 1.00},
	"furious":    {-0.80, 1.00},
	"annoyed":    {-0.40, 0.80},
	"frustrated": {-0.60, 0.80},
	"upset":      {-0.50, 0.80},
	"lonely":     {-0.60, 1.00},
	"alone":      {-0.30, 0.60},
	"depressed":  {-0.70, 1.00},
	"miserable":  {-1.00, 1.00},
	"hopeless":   {-0.80, 0.90},
	"worthless":  {-0.80, 0.90},
	"helpless":   {-0.70, 0.90},
	"useless":    {-0.50, 0.50},
	"tired":      {-0.40, 0.70},
	"exhausted":  {-0.60, 0.80},
	"scared":     {-0.60, 1.00},
	"afraid":     {-0.60, 0.90},
	"terrified":  {-0.90, 1.00},
	"anxious":    {-0.50, 0.90},
	"worried":    {-0.40, 0.80},
	"nervous":    {-0.40, 0.80},
	"stressed":   {-0.50, 0.80},
	"pain":       {-0.60, 0.70},
	"hurt":       {-0.60, 0.70},
	"cry":        {-0.50, 0.80},
	"crying":     {-0.60, 0.80},
	"broken":     {-0.60, 0.70},
	"empty":      {-0.40, 0.60},
	"lost":       {-0.30, 0.50},
	"sick":       {-0.70, 0.80},
	"die":        {-0.80, 0.80},
	"dead":       {-0.80, 0.80},
	"kill":       {-0.90, 0.80},
	"suicide":    {-1.00, 0.90},
	"failure":    {-0.60, 0.70},
	"wrong":      {-0.50, 0.90},
	"difficult":  {-0.50, 1.00},
	"hard":       {-0.30, 0.50},
	"kashtam":    {-0.60, 0.90},
	"kashtama":   {-0.60, 0.90},
	"bayama":     {-0.50, 0.90},
	"kovam":      {-0.50, 0.90},
}
